package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-cloud/notify-hub/internal/schedule"
)

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{name: "every five minutes", expr: "*/5 * * * *", wantErr: false},
		{name: "every minute", expr: "* * * * *", wantErr: false},
		{name: "daily at nine", expr: "0 9 * * *", wantErr: false},
		{name: "weekday range", expr: "30 8 * * 1-5", wantErr: false},
		{name: "pinned one-shot form", expr: "15 14 3 7 *", wantErr: false},
		{name: "four fields", expr: "* * * *", wantErr: true},
		{name: "six fields", expr: "* * * * * *", wantErr: true},
		{name: "minute out of range", expr: "60 * * * *", wantErr: true},
		{name: "hour out of range", expr: "0 24 * * *", wantErr: true},
		{name: "empty expression", expr: "", wantErr: true},
		{name: "garbage", expr: "not a cron", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := schedule.Validate(tc.expr)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_FieldCountReason(t *testing.T) {
	err := schedule.Validate("* * * *")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 fields")
}

func TestNext_StrictlyIncreasing(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		next, err := schedule.Next("*/5 * * * *", after)
		require.NoError(t, err)
		assert.True(t, next.After(after), "next occurrence %v not after %v", next, after)
		after = next
	}
}

func TestNext_InvalidExpression(t *testing.T) {
	_, err := schedule.Next("bad", time.Now())
	assert.Error(t, err)
}

func TestPin(t *testing.T) {
	at := time.Date(2025, 7, 3, 14, 15, 0, 0, time.UTC)
	expr := schedule.Pin(at)

	assert.Equal(t, "15 14 3 7 *", expr)
	require.NoError(t, schedule.Validate(expr))
}

func TestPin_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	at := time.Date(2025, 7, 3, 14, 15, 0, 0, loc)

	assert.Equal(t, "15 12 3 7 *", schedule.Pin(at))
}
