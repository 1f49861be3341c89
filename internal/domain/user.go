package domain

// User is a row in the user directory consumed by the dashboards to
// resolve recipient lists. notify-hub only reads this table.
type User struct {
	ID           string `db:"id"            json:"id"`
	Email        string `db:"email"         json:"email"`
	PlatformRole string `db:"platform_role" json:"platform_role"`
	IsActive     bool   `db:"is_active"     json:"is_active"`
}
