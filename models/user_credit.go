package models

import (
	"time"
)

// UserCredit is the current balance row of a user. There is at most one per user.
type UserCredit struct {
	ID          int64      `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"userId"`
	Balance     int64      `db:"balance" json:"balance"`
	LastRefresh *time.Time `db:"last_refresh" json:"lastRefresh"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// RefreshDue reports whether at least interval has elapsed since the last refresh.
// A balance that was never refreshed is always due.
func (c *UserCredit) RefreshDue(now time.Time, interval time.Duration) bool {
	if c.LastRefresh == nil {
		return true
	}
	return now.Sub(*c.LastRefresh) >= interval
}
