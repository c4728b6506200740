package models

import "time"

// Outcome reports what a look-up-or-create on a status list did.
type Outcome string

const (
	OutcomeAdded          Outcome = "added"
	OutcomeStarted        Outcome = "started"
	OutcomeAlreadyPresent Outcome = "already_present"
)

// Rating bounds for a Read record.
const (
	MinRating = 1
	MaxRating = 5
)

// TBREntry is a to-be-read row joined with its book.
type TBREntry struct {
	ID        string    `json:"id"`
	ReaderID  string    `json:"readerId"`
	Book      Book      `json:"book"`
	AddedDate time.Time `json:"addedDate"`
}

// CurrentlyReadingEntry is a currently-reading row joined with its book.
type CurrentlyReadingEntry struct {
	ID        string    `json:"id"`
	ReaderID  string    `json:"readerId"`
	Book      Book      `json:"book"`
	StartDate time.Time `json:"startDate"`
}

// ReadRecord is a finished book with an optional review and rating.
type ReadRecord struct {
	ID         string    `json:"id"`
	ReaderID   string    `json:"readerId"`
	Book       Book      `json:"book"`
	FinishDate time.Time `json:"finishDate"`
	Review     *string   `json:"review,omitempty"`
	Rating     *int      `json:"rating,omitempty"`
}

// BookStatus is a reader's membership in each of the three lists for one book.
// The lists are independent; a book can be in several at once.
type BookStatus struct {
	BookID           string `json:"bookId"`
	ToBeRead         bool   `json:"toBeRead"`
	CurrentlyReading bool   `json:"currentlyReading"`
	Read             bool   `json:"read"`
}

// ListCounts is the size of each of a reader's lists.
type ListCounts struct {
	ToBeRead         int `json:"toBeRead"`
	CurrentlyReading int `json:"currentlyReading"`
	Read             int `json:"read"`
}
