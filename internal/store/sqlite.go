package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SQLiteStore is a DocumentStore kept in a single SQLite file. Each collection
// is a table of (id, doc) rows where doc is canonical extended JSON, so
// documents round-trip with the same types MongoDB would store.
type SQLiteStore struct {
	db *sql.DB

	tablesMu sync.Mutex
	tables   map[string]bool
}

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}

	// sqlite allows one writer; a single connection also keeps ":memory:" alive
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}

	return &SQLiteStore{db: db, tables: map[string]bool{}}, nil
}

func (s *SQLiteStore) ensureTable(ctx context.Context, collection string) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	s.tablesMu.Lock()
	defer s.tablesMu.Unlock()

	if s.tables[collection] {
		return nil
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, collection)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("creating table %s: %w", collection, err)
	}

	s.tables[collection] = true
	return nil
}

func (s *SQLiteStore) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return "", err
	}

	m, err := toDocument(doc)
	if err != nil {
		return "", err
	}

	oid := primitive.NewObjectID()
	m[IDField] = oid

	data, err := bson.MarshalExtJSON(m, true, false)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, collection)
	if _, err := s.db.ExecContext(ctx, stmt, oid.Hex(), string(data)); err != nil {
		return "", fmt.Errorf("inserting into %s: %w", collection, err)
	}

	return oid.Hex(), nil
}

func (s *SQLiteStore) FindOne(ctx context.Context, collection string, filter Filter, out any) error {
	row, err := s.first(ctx, s.db, collection, filter)
	if err != nil {
		return err
	}
	return decodeDocument(row.doc, out)
}

func (s *SQLiteStore) FindMany(ctx context.Context, collection string, filter Filter, out any) error {
	rows, err := s.scan(ctx, s.db, collection, filter, false)
	if err != nil {
		return err
	}

	docs := make([]bson.M, len(rows))
	for i, r := range rows {
		docs[i] = r.doc
	}
	return decodeDocuments(docs, out)
}

func (s *SQLiteStore) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) error {
	// the table must exist before the transaction takes the only connection
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.first(ctx, tx, collection, filter)
		if err != nil {
			return err
		}

		if err := applyUpdate(row.doc, update); err != nil {
			return err
		}

		data, err := bson.MarshalExtJSON(row.doc, true, false)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}

		stmt := fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, collection)
		if _, err := tx.ExecContext(ctx, stmt, string(data), row.id); err != nil {
			return fmt.Errorf("updating %s: %w", collection, err)
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteOne(ctx context.Context, collection string, filter Filter) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		row, err := s.first(ctx, tx, collection, filter)
		if err != nil {
			return err
		}

		stmt := fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, collection)
		if _, err := tx.ExecContext(ctx, stmt, row.id); err != nil {
			return fmt.Errorf("deleting from %s: %w", collection, err)
		}
		return nil
	})
}

func (s *SQLiteStore) CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error) {
	rows, err := s.scan(ctx, s.db, collection, filter, false)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqliteRow struct {
	id  string
	doc bson.M
}

func (s *SQLiteStore) first(ctx context.Context, q queryer, collection string, filter Filter) (*sqliteRow, error) {
	rows, err := s.scan(ctx, q, collection, filter, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, notFound(collection, filter)
	}
	return &rows[0], nil
}

// scan reads matching rows in insertion order. An id filter is pushed down to
// the query; any other field is matched on the decoded documents.
func (s *SQLiteStore) scan(ctx context.Context, q queryer, collection string, filter Filter, firstOnly bool) ([]sqliteRow, error) {
	if err := s.ensureTable(ctx, collection); err != nil {
		return nil, err
	}

	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, doc FROM %q`, collection)
	var args []any
	if oid, ok := f[IDField].(primitive.ObjectID); ok {
		query += ` WHERE id = ?`
		args = append(args, oid.Hex())
	}
	query += ` ORDER BY rowid`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close() //nolint:errcheck

	var out []sqliteRow
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("reading %s: %w", collection, err)
		}

		var doc bson.M
		if err := bson.UnmarshalExtJSON([]byte(data), true, &doc); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}

		ok, err := matches(doc, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		out = append(out, sqliteRow{id: id, doc: doc})
		if firstOnly {
			break
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
