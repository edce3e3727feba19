package database

import (
	"context"
)

// IdentityReader provides read-only access to enrolled identities
type IdentityReader interface {
	// Exists reports whether the username is enrolled
	Exists(ctx context.Context, username string) (bool, error)
	// All returns every identity with its embedding, oldest registration first
	All(ctx context.Context) ([]EnrolledIdentity, error)
	// List returns identity summaries ordered by registration time
	List(ctx context.Context) ([]IdentitySummary, error)
	// Count returns the number of enrolled identities
	Count(ctx context.Context) (int, error)
	// CountDimensionMismatches returns how many identities were enrolled with
	// an embedding dimension other than dim
	CountDimensionMismatches(ctx context.Context, dim int) (int, error)
}

// IdentityWriter extends IdentityReader with enrollment.
type IdentityWriter interface {
	IdentityReader
	// Insert stores a new identity. It returns an error wrapping ErrDuplicateLabel
	// when the username exists, and the store is left unchanged in that case.
	// Uniqueness is enforced by the store itself, not only by a prior Exists call.
	Insert(ctx context.Context, identity EnrolledIdentity) error
}
