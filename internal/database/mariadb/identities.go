package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-auth/internal/database"
)

// duplicateEntry is the MySQL error number for a unique key violation.
const duplicateEntry = 1062

// IdentityRepository provides MariaDB-backed identity storage.
type IdentityRepository struct {
	pool *Pool
}

func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM identities WHERE username = ?)", username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check identity exists: %w", err)
	}
	return exists, nil
}

func (r *IdentityRepository) Insert(ctx context.Context, identity database.EnrolledIdentity) error {
	embedding, err := json.Marshal(identity.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	var bbox sql.NullString
	if identity.BBox != nil {
		data, err := json.Marshal(identity.BBox)
		if err != nil {
			return fmt.Errorf("marshal bbox: %w", err)
		}
		bbox = sql.NullString{String: string(data), Valid: true}
	}

	registeredAt := identity.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}

	_, err = r.pool.db.ExecContext(ctx,
		`INSERT INTO identities (username, embedding_json, bbox_json, dim, registered_at) VALUES (?, ?, ?, ?, ?)`,
		identity.Username, string(embedding), bbox, len(identity.Embedding), registeredAt.UTC(),
	)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == duplicateEntry {
			return fmt.Errorf("%w: %s", database.ErrDuplicateLabel, identity.Username)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) All(ctx context.Context) ([]database.EnrolledIdentity, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT username, embedding_json, bbox_json, registered_at FROM identities ORDER BY registered_at, username")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []database.EnrolledIdentity
	for rows.Next() {
		var (
			identity  database.EnrolledIdentity
			embedding string
			bbox      sql.NullString
		)
		if err := rows.Scan(&identity.Username, &embedding, &bbox, &identity.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &identity.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", identity.Username, err)
		}
		if bbox.Valid {
			if err := json.Unmarshal([]byte(bbox.String), &identity.BBox); err != nil {
				return nil, fmt.Errorf("decode bbox of %s: %w", identity.Username, err)
			}
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]database.IdentitySummary, error) {
	rows, err := r.pool.db.QueryContext(ctx, "SELECT username, registered_at FROM identities ORDER BY registered_at, username")
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

func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return count, nil
}

func (r *IdentityRepository) CountDimensionMismatches(ctx context.Context, dim int) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities WHERE dim <> ?", dim).Scan(&count); err != nil {
		return 0, fmt.Errorf("count dimension mismatches: %w", err)
	}
	return count, nil
}
