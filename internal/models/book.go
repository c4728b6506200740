package models

import "time"

// Book is a catalog entry. (Title, Author) is unique, case-insensitively.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	CoverURL  string    `json:"coverUrl,omitempty"`
	Genres    []Genre   `json:"genres,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Genre is a tag attached to books.
type Genre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BookSummary is a search result from the external catalog. It is never persisted.
type BookSummary struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}
