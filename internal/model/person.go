package model

import "time"

// Person is a tracked child and their screen-time balance in minutes.
type Person struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	TimeBalance int       `json:"timeBalance"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClonePeople returns a copy of people that shares no backing array.
func ClonePeople(people []Person) []Person {
	if people == nil {
		return nil
	}
	out := make([]Person, len(people))
	copy(out, people)
	return out
}
