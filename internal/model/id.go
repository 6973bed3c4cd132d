package model

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewID returns a new sortable unique identifier for a person or chore.
func NewID() string {
	return ulid.Make().String()
}

// NewFamilyID returns a sharing token for a family record. It is a ULID
// drawn from crypto/rand so it is hard to guess and carries its creation time.
func NewFamilyID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
