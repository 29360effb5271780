package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/require"
)

var mongoTestURI = os.Getenv("MONGODB_TEST_URI")

type widget struct {
	ID    string            `bson:"_id,omitempty"`
	Name  string            `bson:"name"`
	Count int               `bson:"count"`
	Tags  map[string]string `bson:"tags"`
}

// backends returns every DocumentStore implementation available to the test.
func backends(t *testing.T) map[string]DocumentStore {
	t.Helper()
	ctx := context.Background()

	sqliteFile, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)

	sqliteMem, err := NewSQLiteStore(ctx, ":memory:")
	require.NoError(t, err)

	out := map[string]DocumentStore{
		"memory":        NewMemoryStore(),
		"sqlite":        sqliteFile,
		"sqlite-memory": sqliteMem,
	}

	if mongoTestURI != "" {
		m, err := NewMongoStore(ctx, mongoTestURI, "callaudit_test")
		require.NoError(t, err)
		out["mongo"] = m
	}

	for _, s := range out {
		t.Cleanup(func() {
			require.NoError(t, s.Close(context.Background()))
		})
	}
	return out
}

func TestDocumentStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll := "widgets_contract"

			if name == "mongo" {
				t.Cleanup(func() {
					var all []widget
					_ = s.FindMany(ctx, coll, Filter{}, &all)
					for _, w := range all {
						_ = s.DeleteOne(ctx, coll, ByID(w.ID))
					}
				})
			}

			require.NoError(t, s.Ping(ctx))

			idA, err := s.InsertOne(ctx, coll, &widget{Name: "a", Count: 1, Tags: map[string]string{"color": "red"}})
			require.NoError(t, err)
			_, err = ParseID(idA)
			require.NoError(t, err)

			idB, err := s.InsertOne(ctx, coll, &widget{Name: "b", Count: 2, Tags: map[string]string{}})
			require.NoError(t, err)
			require.NotEqual(t, idA, idB)

			var got widget
			require.NoError(t, s.FindOne(ctx, coll, ByID(idB), &got))
			require.Equal(t, widget{ID: idB, Name: "b", Count: 2, Tags: map[string]string{}}, got)

			var byName widget
			require.NoError(t, s.FindOne(ctx, coll, Filter{"name": "a"}, &byName))
			require.Equal(t, idA, byName.ID)

			var all []widget
			require.NoError(t, s.FindMany(ctx, coll, Filter{}, &all))
			require.Len(t, all, 2)
			require.Equal(t, idA, all[0].ID)
			require.Equal(t, idB, all[1].ID)

			n, err := s.CountDocuments(ctx, coll, Filter{"tags.color": "red"})
			require.NoError(t, err)
			require.EqualValues(t, 1, n)

			require.NoError(t, s.UpdateOne(ctx, coll, ByID(idA), Update{
				Set:   map[string]any{"tags.size": "large", "count": 5},
				Unset: []string{"tags.color"},
			}))
			require.NoError(t, s.FindOne(ctx, coll, ByID(idA), &got))
			require.Equal(t, widget{ID: idA, Name: "a", Count: 5, Tags: map[string]string{"size": "large"}}, got)

			require.NoError(t, s.DeleteOne(ctx, coll, ByID(idB)))
			n, err = s.CountDocuments(ctx, coll, Filter{})
			require.NoError(t, err)
			require.EqualValues(t, 1, n)
		})
	}
}

func TestDocumentStoreIDErrors(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			coll := "widgets_errors"

			var w widget
			require.ErrorIs(t, s.FindOne(ctx, coll, ByID("not-an-id"), &w), models.ErrInvalidID)
			require.ErrorIs(t, s.FindOne(ctx, coll, ByID("65a1b2c3d4e5f60718293a4b"), &w), models.ErrNotFound)
			require.ErrorIs(t, s.UpdateOne(ctx, coll, ByID("65a1b2c3d4e5f60718293a4b"), Update{Set: map[string]any{"name": "x"}}), models.ErrNotFound)
			require.ErrorIs(t, s.DeleteOne(ctx, coll, ByID("65a1b2c3d4e5f60718293a4b")), models.ErrNotFound)
			require.ErrorIs(t, s.DeleteOne(ctx, coll, ByID("zz")), models.ErrInvalidID)
		})
	}
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "persist.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	id, err := s.InsertOne(ctx, "widgets", &widget{Name: "kept"})
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close(ctx) //nolint:errcheck

	var w widget
	require.NoError(t, s.FindOne(ctx, "widgets", ByID(id), &w))
	require.Equal(t, "kept", w.Name)
}

func TestInvalidCollectionName(t *testing.T) {
	_, err := NewMemoryStore().InsertOne(context.Background(), "bad name; drop", &widget{})
	require.Error(t, err)
}

func TestUpdateCannotChangeID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id, err := s.InsertOne(ctx, "widgets", &widget{Name: "a"})
	require.NoError(t, err)

	err = s.UpdateOne(ctx, "widgets", ByID(id), Update{Set: map[string]any{IDField: "other"}})
	require.Error(t, err)

	var w widget
	require.NoError(t, s.FindOne(ctx, "widgets", ByID(id), &w))
	require.Equal(t, id, w.ID)
}
