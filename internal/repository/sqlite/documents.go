package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/ngo-hub/internal/apperror"
	"github.com/sakif/ngo-hub/internal/store"
)

// compile-time check that *DB implements store.RecordStore
var _ store.RecordStore = (*DB)(nil)

// DOCUMENTS TABLE:
// Every record store document is one row keyed by (collection, doc_key) with
// its fields as a JSON object in the data column. SQLite's JSON functions do
// the merging and counting inside a single UPDATE, so Update and Increment
// are atomic without an explicit transaction:
//
//	json_patch(data, ?)            → merge top-level fields (RFC 7396)
//	json_set(data, '$.f', expr)    → write one field
//	json_extract(data, '$.f')      → read one field

func (db *DB) Get(ctx context.Context, collection, key string) (*store.Document, error) {
	if err := store.CheckKey(collection, key); err != nil {
		return nil, err
	}

	var data string
	err := db.conn.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND doc_key = ?`,
		collection, key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(collection, key)
		}
		return nil, fmt.Errorf("sqlite: getting %s/%s: %w", collection, key, err)
	}
	return decodeDocument(collection, key, data)
}

func (db *DB) Set(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_key, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, doc_key) DO UPDATE
		 SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, key, data, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting %s/%s: %w", collection, key, err)
	}
	return nil
}

func (db *DB) Add(ctx context.Context, collection string, fields store.Fields) (string, error) {
	key := xid.New().String()
	if err := db.Create(ctx, collection, key, fields); err != nil {
		return "", err
	}
	return key, nil
}

func (db *DB) Create(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	data, err := encodeFields(fields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, doc_key, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		collection, key, data, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating %s/%s: %w", collection, key, err)
	}
	return requireRow(res, apperror.Conflict(collection, key))
}

func (db *DB) Update(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	patch, err := encodeFields(fields)
	if err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = ?
		 WHERE collection = ? AND doc_key = ?`,
		patch, time.Now().UTC(), collection, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s/%s: %w", collection, key, err)
	}
	return requireRow(res, apperror.NotFound(collection, key))
}

func (db *DB) Increment(ctx context.Context, collection, key, field string, delta float64) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	path := "$." + field

	res, err := db.conn.ExecContext(ctx,
		`UPDATE documents
		 SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?), updated_at = ?
		 WHERE collection = ? AND doc_key = ?`,
		path, path, delta, time.Now().UTC(), collection, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing %s/%s.%s: %w", collection, key, field, err)
	}
	return requireRow(res, apperror.NotFound(collection, key))
}

func (db *DB) Delete(ctx context.Context, collection, key string) error {
	if err := store.CheckKey(collection, key); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND doc_key = ?`,
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s/%s: %w", collection, key, err)
	}
	return nil
}

func (db *DB) List(ctx context.Context, collection string) ([]store.Document, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT doc_key, data FROM documents WHERE collection = ? ORDER BY doc_key`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", collection, err)
	}
	// ALWAYS close rows: an open Rows holds its connection, and with
	// MaxOpenConns(1) the next query would wait forever.
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s: %w", collection, err)
		}
		doc, err := decodeDocument(collection, key, data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %s: %w", collection, err)
	}
	return docs, nil
}

// requireRow returns notMatched when the statement touched no row.
func requireRow(res sql.Result, notMatched error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return notMatched
	}
	return nil
}

func encodeFields(fields store.Fields) (string, error) {
	if fields == nil {
		fields = store.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding fields: %w", err)
	}
	return string(raw), nil
}

func decodeDocument(collection, key, data string) (*store.Document, error) {
	var fields store.Fields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("sqlite: decoding %s/%s: %w", collection, key, err)
	}
	return &store.Document{Collection: collection, Key: key, Fields: fields}, nil
}
