package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/livequery/internal/ir"
)

// Topic returns the per-record topic published on writes to key.
func Topic(collection string, key ir.Key) string {
	return collection + ":" + key.Display()
}

// Put inserts or replaces a record and returns it as stored.
//
// Collections keyed by the single field "id" get a ULID when the record
// has none; any other missing key field is an error. After commit the
// collection topic and the record topic are published.
func (s *Store) Put(ctx context.Context, collection string, fields ir.IRObject) (ir.Record, error) {
	if collection == "" {
		return ir.Record{}, fmt.Errorf("put: empty collection")
	}

	pk := s.PrimaryKey(collection)
	rec := ir.Record{Fields: make(ir.IRObject, len(fields)+1)}
	for k, v := range fields {
		rec.Fields[k] = v
	}
	if len(pk) == 1 && pk[0] == "id" {
		if _, ok := rec.Fields["id"]; !ok {
			rec.Fields["id"] = ir.IRString(s.newID())
		}
	}

	key, err := ir.KeyOf(rec, pk)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put %s: %w", collection, err)
	}
	data, err := marshalFields(rec.Fields)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put %s: %w", collection, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put %s: begin: %w", collection, err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM records`).Scan(&seq); err != nil {
		return ir.Record{}, fmt.Errorf("put %s: next seq: %w", collection, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (collection, rid, seq, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, rid) DO UPDATE SET seq = excluded.seq, data = excluded.data
	`, collection, key.String(), seq, data)
	if err != nil {
		return ir.Record{}, fmt.Errorf("put %s: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Record{}, fmt.Errorf("put %s: commit: %w", collection, err)
	}

	s.notify(collection, Topic(collection, key))
	return rec, nil
}

// PutAll writes records in order, stopping at the first error.
func (s *Store) PutAll(ctx context.Context, collection string, records []ir.IRObject) ([]ir.Record, error) {
	out := make([]ir.Record, 0, len(records))
	for i, fields := range records {
		rec, err := s.Put(ctx, collection, fields)
		if err != nil {
			return out, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the record with key. Reports whether a record was removed;
// topics are published only when one was.
func (s *Store) Delete(ctx context.Context, collection string, key ir.Key) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE collection = ? AND rid = ?
	`, collection, key.String())
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", collection, err)
	}
	if n == 0 {
		return false, nil
	}

	s.notify(collection, Topic(collection, key))
	return true, nil
}

// Get retrieves a single record by key.
// Returns sql.ErrNoRows (wrapped) if not found.
func (s *Store) Get(ctx context.Context, collection string, key ir.Key) (ir.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM records WHERE collection = ? AND rid = ?
	`, collection, key.String()).Scan(&data)
	if err != nil {
		return ir.Record{}, fmt.Errorf("get %s %s: %w", collection, key.Display(), err)
	}

	fields, err := unmarshalFields(data)
	if err != nil {
		return ir.Record{}, err
	}
	return ir.Record{Fields: fields}, nil
}

// Seq returns the current logical write clock.
func (s *Store) Seq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM records`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}
	return seq.Int64, nil
}
