package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kozaktomas/face-auth/internal/database"
)

// identityDocument is the stored shape of a user: username, embedding as a
// plain number array, bbox and registration time.
type identityDocument struct {
	Username     string    `bson:"username"`
	Embedding    []float32 `bson:"embedding"`
	BBox         []float64 `bson:"bbox,omitempty"`
	Dim          int       `bson:"dim"`
	RegisteredAt time.Time `bson:"registered_at"`
}

var byRegistration = bson.D{{Key: "registered_at", Value: 1}, {Key: "username", Value: 1}}

// IdentityRepository provides MongoDB-backed identity storage.
type IdentityRepository struct {
	users *mongo.Collection
}

func NewIdentityRepository(c *Client) *IdentityRepository {
	return &IdentityRepository{users: c.users}
}

func (r *IdentityRepository) Exists(ctx context.Context, username string) (bool, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{"username": username}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check identity exists: %w", err)
	}
	return n > 0, nil
}

func (r *IdentityRepository) Insert(ctx context.Context, identity database.EnrolledIdentity) error {
	registeredAt := identity.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}

	_, err := r.users.InsertOne(ctx, identityDocument{
		Username:     identity.Username,
		Embedding:    identity.Embedding,
		BBox:         identity.BBox,
		Dim:          len(identity.Embedding),
		RegisteredAt: registeredAt.UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", database.ErrDuplicateLabel, identity.Username)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) All(ctx context.Context) ([]database.EnrolledIdentity, error) {
	cursor, err := r.users.Find(ctx, bson.M{}, options.Find().SetSort(byRegistration))
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}

	var docs []identityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}

	identities := make([]database.EnrolledIdentity, 0, len(docs))
	for _, d := range docs {
		identities = append(identities, database.EnrolledIdentity{
			Username:     d.Username,
			Embedding:    d.Embedding,
			BBox:         d.BBox,
			RegisteredAt: d.RegisteredAt,
		})
	}
	return identities, nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]database.IdentitySummary, error) {
	opts := options.Find().
		SetSort(byRegistration).
		SetProjection(bson.M{"username": 1, "registered_at": 1, "_id": 0})

	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query identity summaries: %w", err)
	}

	var docs []identityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode identity summaries: %w", err)
	}

	summaries := make([]database.IdentitySummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, database.IdentitySummary{Username: d.Username, RegisteredAt: d.RegisteredAt})
	}
	return summaries, nil
}

func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	n, err := r.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return int(n), nil
}

// CountDimensionMismatches counts users whose dimension differs from dim. Documents
// written before the dim field existed fall back to the embedding length.
func (r *IdentityRepository) CountDimensionMismatches(ctx context.Context, dim int) (int, error) {
	filter := bson.M{"$expr": bson.M{"$ne": bson.A{
		bson.M{"$ifNull": bson.A{"$dim", bson.M{"$size": "$embedding"}}},
		dim,
	}}}
	n, err := r.users.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count dimension mismatches: %w", err)
	}
	return int(n), nil
}
