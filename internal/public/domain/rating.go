package domain

import "time"

// Rating is a single user-submitted review of a café.
// Everything except Helpful is immutable once stored.
type Rating struct {
	ID         string
	CafeID     string
	UserID     string
	UserName   string
	UserAvatar string
	Stars      int
	Comment    string
	Tags       []string
	Images     []string
	Helpful    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
