package domain

import (
	"sort"
	"time"
)

// Todo is a single task owned by exactly one user.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SortNewestFirst orders todos by creation time, newest first. Equal
// timestamps keep their incoming order.
func SortNewestFirst(todos []*Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
}
