package libraries

import "time"

type CreateLibraryRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address,omitempty"`
}

type UpdateLibraryRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address *string `json:"address,omitempty"`
}

type Library struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      *string   `json:"address,omitempty"`
	BookCount    int       `json:"bookCount"`
	StudentCount int       `json:"studentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}
