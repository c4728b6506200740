package models

import "time"

// Activity types recorded against a reader.
const (
	ActivitySignup        = "reader.signup"
	ActivityTBRAdd        = "tbr.add"
	ActivityTBRRemove     = "tbr.remove"
	ActivityReadingStart  = "reading.start"
	ActivityReadingFinish = "reading.finish"
)

// Activity is an entry in a reader's activity feed.
type Activity struct {
	ID        string    `json:"id"`
	ReaderID  string    `json:"readerId"`
	Type      string    `json:"type"` // e.g., "tbr.add", "reading.finish"
	Message   string    `json:"message"`
	BookID    *string   `json:"bookId,omitempty"` // Nullable for account events
	CreatedAt time.Time `json:"createdAt"`
}
