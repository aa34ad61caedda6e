package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"memberhub/pkg/platform/sentinel"
)

// Schema creates the single jsonb-backed table the Postgres store uses.
// Applied by deployment tooling, kept here so the shape is versioned with
// the code that queries it.
const Schema = `
CREATE TABLE IF NOT EXISTS domain_records (
	entity TEXT NOT NULL,
	id     TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (entity, id)
);
CREATE INDEX IF NOT EXISTS domain_records_fields_idx ON domain_records USING gin (fields);
`

// PostgresStore implements Store on PostgreSQL for self-hosted deployments.
// Records live in one jsonb table so the schema-flexible contract of the
// hosted store carries over unchanged.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to Postgres, verifies the connection, and applies the schema.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply record store schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle for health checks.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) FindOne(ctx context.Context, entity Entity, filters ...Filter) (*Record, error) {
	query, args := buildSelect(entity, filters, 1)
	row := s.db.QueryRowContext(ctx, query, args...)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrRecordNotFound
		}
		return nil, fmt.Errorf("find one %s: %w", entity, err)
	}
	return record, nil
}

func (s *PostgresStore) FindMany(ctx context.Context, entity Entity, filters ...Filter) ([]Record, error) {
	query, args := buildSelect(entity, filters, 0)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find many %s: %w", entity, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", entity, err)
	}
	return out, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, entity Entity, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields FROM domain_records WHERE entity = $1 AND id = $2`,
		string(entity), id,
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", entity, id, err)
	}
	return record, nil
}

func (s *PostgresStore) Update(ctx context.Context, entity Entity, id string, fields map[string]any) (*Record, error) {
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal update for %s/%s: %w", entity, id, err)
	}

	row := s.db.QueryRowContext(ctx,
		`UPDATE domain_records SET fields = fields || $3::jsonb
		 WHERE entity = $1 AND id = $2
		 RETURNING id, fields`,
		string(entity), id, string(patch),
	)
	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update %s/%s: %w", entity, id, sentinel.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("update %s/%s: %w", entity, id, err)
	}
	return record, nil
}

// Insert creates a record. Used by fixtures and by out-of-band tooling; the
// engine itself never creates domain records.
func (s *PostgresStore) Insert(ctx context.Context, entity Entity, record Record) error {
	fields, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("marshal insert for %s: %w", entity, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO domain_records (entity, id, fields) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (entity, id) DO UPDATE SET fields = EXCLUDED.fields`,
		string(entity), record.ID, string(fields),
	)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", entity, record.ID, err)
	}
	return nil
}

// buildSelect renders the equality filters. A filter matches a scalar field
// by text equality or a list-valued field by jsonb containment, mirroring
// the memory store's semantics.
func buildSelect(entity Entity, filters []Filter, limit int) (string, []any) {
	query := `SELECT id, fields FROM domain_records WHERE entity = $1`
	args := []any{string(entity)}

	for _, f := range filters {
		fieldArg := len(args) + 1
		valueArg := len(args) + 2
		query += fmt.Sprintf(
			` AND (fields ->> $%d = $%d OR fields -> $%d @> to_jsonb($%d::text))`,
			fieldArg, valueArg, fieldArg, valueArg,
		)
		args = append(args, f.Field, fmt.Sprint(f.Value))
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		id     string
		fields []byte
	)
	if err := row.Scan(&id, &fields); err != nil {
		return nil, err
	}
	record := Record{ID: id, Fields: make(map[string]any)}
	if err := json.Unmarshal(fields, &record.Fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return &record, nil
}
