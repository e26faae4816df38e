package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/livedash/pkg/domain"
)

// recordSQL is the database representation of a record
type recordSQL struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Type       string    `db:"type"`
	Fields     fieldsSQL `db:"fields"`
}

// fieldsSQL is a JSON object of record fields for SQL operations
type fieldsSQL map[string]any

// Value implements driver.Valuer for database storage
func (f fieldsSQL) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]any(f))
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (f *fieldsSQL) Scan(value any) error {
	if value == nil {
		*f = fieldsSQL{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unexpected fields type %T", value)
	}

	res := map[string]any{}
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("unmarshal fields: %w", err)
	}
	*f = res
	return nil
}

func (r recordSQL) toDomain() domain.Record {
	return domain.Record{ID: r.ID, Type: r.Type, Fields: map[string]any(r.Fields)}
}

// PutRecord inserts or replaces the record in collection and bumps the collection version
func (s *Store) PutRecord(ctx context.Context, collection string, rec domain.Record) error {
	return s.PutRecords(ctx, collection, []domain.Record{rec})
}

// PutRecords inserts or replaces records in one transaction with a single version bump
func (s *Store) PutRecords(ctx context.Context, collection string, recs []domain.Record) error {
	if collection == "" {
		return errors.New("empty collection name")
	}
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("record without id in %s", collection)
		}
	}

	err := s.write(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO records (collection, id, type, fields, updated_at)
			VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(collection, id) DO UPDATE SET
				type = excluded.type,
				fields = excluded.fields,
				updated_at = excluded.updated_at`
		for _, rec := range recs {
			if _, err := tx.ExecContext(ctx, query, collection, rec.ID, rec.Type, fieldsSQL(rec.Fields)); err != nil {
				return fmt.Errorf("put record %s/%s: %w", collection, rec.ID, err)
			}
		}
		return bumpVersion(ctx, tx, collection)
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// DeleteRecord removes the record, deleting a missing record is not an error
func (s *Store) DeleteRecord(ctx context.Context, collection, id string) error {
	err := s.write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE collection = ? AND id = ?", collection, id)
		if err != nil {
			return fmt.Errorf("delete record %s/%s: %w", collection, id, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		return bumpVersion(ctx, tx, collection)
	})
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// Records returns records of the collection matching the query. With OrderBy set,
// records are sorted by that field descending, then by id.
func (s *Store) Records(ctx context.Context, q domain.Query) ([]domain.Record, error) {
	var sb strings.Builder
	args := []any{q.Collection}
	sb.WriteString("SELECT collection, id, type, fields FROM records WHERE collection = ?")
	if q.Field != "" {
		sb.WriteString(" AND CAST(json_extract(fields, ?) AS TEXT) = ?")
		args = append(args, jsonPath(q.Field), q.Value)
	}
	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY json_extract(fields, ?) DESC, id ASC")
		args = append(args, jsonPath(q.OrderBy))
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}

	var rows []recordSQL
	if err := s.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("select records of %s: %w", q.Collection, err)
	}

	res := make([]domain.Record, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toDomain())
	}
	return res, nil
}

// Version returns the collection version, 0 for a collection never written
func (s *Store) Version(ctx context.Context, collection string) (int64, error) {
	var ver int64
	err := s.db.GetContext(ctx, &ver, "SELECT version FROM collections WHERE name = ?", collection)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get version of %s: %w", collection, err)
	}
	return ver, nil
}

// write runs fn in a transaction, retrying on lock errors
func (s *Store) write(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		if err := s.inTransaction(ctx, fn); err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: err}
		}
		return nil
	})
	var critical *criticalError
	if errors.As(err, &critical) {
		return critical.err
	}
	return err
}

func bumpVersion(ctx context.Context, tx *sqlx.Tx, collection string) error {
	query := `INSERT INTO collections (name, version) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET version = version + 1`
	if _, err := tx.ExecContext(ctx, query, collection); err != nil {
		return fmt.Errorf("bump version of %s: %w", collection, err)
	}
	return nil
}

// jsonPath makes a quoted JSON path of a top level field
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
