package database

import (
	"errors"
	"time"
)

// ErrDuplicateLabel is returned by Insert when the username is already enrolled.
var ErrDuplicateLabel = errors.New("username already registered")

// EnrolledIdentity is one registered user and the embedding captured at registration.
type EnrolledIdentity struct {
	Username     string
	Embedding    []float32
	BBox         []float64 // [x1, y1, x2, y2] of the registration face, in prepared-image pixels
	RegisteredAt time.Time
}

// IdentitySummary is the public view of an identity; it never carries the embedding.
type IdentitySummary struct {
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Summary returns the public view of the identity.
func (e EnrolledIdentity) Summary() IdentitySummary {
	return IdentitySummary{Username: e.Username, RegisteredAt: e.RegisteredAt}
}
