package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-auth/internal/database"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// IdentityRepository provides PostgreSQL-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Exists reports whether the username is enrolled.
func (r *IdentityRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM identities WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identity exists: %w", err)
	}
	return exists, nil
}

// Insert stores a new identity; a duplicate username yields database.ErrDuplicateLabel.
func (r *IdentityRepository) Insert(ctx context.Context, identity database.EnrolledIdentity) error {
	registeredAt := identity.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO identities (username, embedding, bbox, dim, registered_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		identity.Username,
		pgvector.NewVector(identity.Embedding),
		pq.Array(identity.BBox),
		len(identity.Embedding),
		registeredAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", database.ErrDuplicateLabel, identity.Username)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// All returns every identity with its embedding, oldest registration first.
func (r *IdentityRepository) All(ctx context.Context) ([]database.EnrolledIdentity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT username, embedding, bbox, registered_at
		FROM identities
		ORDER BY registered_at, username
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.EnrolledIdentity
	for rows.Next() {
		var (
			identity database.EnrolledIdentity
			vec      pgvector.Vector
			bbox     pq.Float64Array
		)
		if err := rows.Scan(&identity.Username, &vec, &bbox, &identity.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identity.Embedding = vec.Slice()
		identity.BBox = []float64(bbox)
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// List returns identity summaries ordered by registration time.
func (r *IdentityRepository) List(ctx context.Context) ([]database.IdentitySummary, error) {
	rows, err := r.pool.Query(ctx, "SELECT username, registered_at FROM identities ORDER BY registered_at, username")
	if err != nil {
		return nil, fmt.Errorf("query identity summaries: %w", err)
	}
	defer rows.Close()

	summaries := []database.IdentitySummary{}
	for rows.Next() {
		var s database.IdentitySummary
		if err := rows.Scan(&s.Username, &s.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan identity summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity summaries: %w", err)
	}
	return summaries, nil
}

// Count returns the number of enrolled identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

// CountDimensionMismatches counts identities whose stored dimension differs from dim.
func (r *IdentityRepository) CountDimensionMismatches(ctx context.Context, dim int) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities WHERE dim <> $1", dim).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dimension mismatches: %w", err)
	}
	return count, nil
}
