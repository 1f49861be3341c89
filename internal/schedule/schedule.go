// Package schedule wraps the five-field cron expression grammar used by
// job schedules: minute hour day-of-month month day-of-week. Standard
// cron semantics apply, including the OR rule when both day fields are
// restricted.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/north-cloud/notify-hub/internal/domain"
)

// FieldCount is the number of fields in a schedule expression.
const FieldCount = 5

// parser accepts the standard five fields and nothing else: no seconds,
// no descriptors. Shared by the scheduler so validation and arming agree.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parser returns the shared cron parser.
func Parser() cron.Parser {
	return parser
}

// Validate checks a schedule expression and returns a ValidationError
// naming the first violated constraint.
func Validate(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != FieldCount {
		return domain.NewValidationError(fmt.Sprintf(
			"cron expression requires exactly %d fields (minute hour day month weekday), got %d",
			FieldCount, len(fields),
		))
	}

	if _, err := parser.Parse(expr); err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}

	return nil
}

// Next returns the smallest instant strictly after the given one that
// matches the expression. Fails only for an invalid expression.
func Next(expr string, after time.Time) (time.Time, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, domain.NewValidationError(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return s.Next(after), nil
}

// Pin builds the fully-pinned expression matching a single instant of t
// (minute, hour, day, month fixed; weekday wildcard). One-shot jobs use
// this form; the scheduler deactivates them after the first firing.
func Pin(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}
