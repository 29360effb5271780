// Package store persists audit records through a small document-store
// contract implemented by MongoDB, SQLite and an in-memory backend.
package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/callaudit/callaudit/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the document key holding the store-assigned id.
const IDField = "_id"

// Filter matches documents by equality on (possibly dotted) field paths. An
// IDField value is given as the hex string returned by InsertOne.
type Filter map[string]any

// ByID returns a filter matching a single document id.
func ByID(id string) Filter {
	return Filter{IDField: id}
}

// Update is a partial update: Set assigns values to field paths and Unset
// removes them. Paths may be dotted to address nested fields.
type Update struct {
	Set   map[string]any
	Unset []string
}

// DocumentStore is the generic persistence contract. Documents are Go values
// with bson tags. Ids cross this boundary as plain hex strings and are
// converted to the backend's native type internally.
type DocumentStore interface {
	// InsertOne stores doc and returns its assigned id.
	InsertOne(ctx context.Context, collection string, doc any) (string, error)

	// FindOne decodes the first match into out, or returns [models.ErrNotFound].
	FindOne(ctx context.Context, collection string, filter Filter, out any) error

	// FindMany decodes all matches, in insertion order, into out, which must
	// be a pointer to a slice.
	FindMany(ctx context.Context, collection string, filter Filter, out any) error

	// UpdateOne applies update to the first match, or returns [models.ErrNotFound].
	UpdateOne(ctx context.Context, collection string, filter Filter, update Update) error

	// DeleteOne removes the first match, or returns [models.ErrNotFound].
	DeleteOne(ctx context.Context, collection string, filter Filter) error

	// CountDocuments counts matches.
	CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close(ctx context.Context) error
}

// ParseID converts a hex id string into an ObjectID, returning
// [models.ErrInvalidID] when it is not one.
func ParseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	return oid, nil
}

var collectionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateCollection(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

func notFound(collection string, filter Filter) error {
	return fmt.Errorf("%w: no document in %s matching %v", models.ErrNotFound, collection, map[string]any(filter))
}
