package domain

import "time"

// Notification is a message delivered to one employee.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Read      bool
	CreatedAt time.Time
}
