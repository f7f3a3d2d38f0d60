package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/cdm/internal/cdm"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cdm_documents (
		id                   TEXT PRIMARY KEY,
		partition_key        TEXT NOT NULL,
		run_id               UUID,
		doc_type             TEXT NOT NULL,
		document_no          TEXT,
		issue_date           DATE,
		due_date             DATE,
		vendor               TEXT,
		vendor_id            TEXT,
		customer_id          TEXT,
		currency             TEXT,
		grand_total          NUMERIC,
		line_item_count      INTEGER NOT NULL DEFAULT 0,
		extraction_timestamp TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL,
		document             JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cdm_documents_partition_idx
		ON cdm_documents (partition_key, created_at DESC)`,
}

const upsertPostgres = `
INSERT INTO cdm_documents (
	id, partition_key, run_id, doc_type, document_no, issue_date, due_date,
	vendor, vendor_id, customer_id, currency, grand_total, line_item_count,
	extraction_timestamp, created_at, document
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
	partition_key = EXCLUDED.partition_key,
	run_id = EXCLUDED.run_id,
	doc_type = EXCLUDED.doc_type,
	document_no = EXCLUDED.document_no,
	issue_date = EXCLUDED.issue_date,
	due_date = EXCLUDED.due_date,
	vendor = EXCLUDED.vendor,
	vendor_id = EXCLUDED.vendor_id,
	customer_id = EXCLUDED.customer_id,
	currency = EXCLUDED.currency,
	grand_total = EXCLUDED.grand_total,
	line_item_count = EXCLUDED.line_item_count,
	extraction_timestamp = EXCLUDED.extraction_timestamp,
	created_at = EXCLUDED.created_at,
	document = EXCLUDED.document`

const selectPostgres = `SELECT id, partition_key, run_id, created_at, document FROM cdm_documents`

// PoolConfig tunes the Postgres connection pool. Zero values keep the pgx
// defaults.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres stores documents in a cdm_documents table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, verifies the connection and creates the schema.
func OpenPostgres(ctx context.Context, url string, pc PoolConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if pc.MaxConns > 0 {
		poolConfig.MaxConns = int32(pc.MaxConns)
	}
	if pc.MinConns > 0 {
		poolConfig.MinConns = int32(pc.MinConns)
	}
	if pc.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Save upserts rec.
func (s *Postgres) Save(ctx context.Context, rec Record) error {
	return upsertDocument(ctx, s.pool, rec)
}

func upsertDocument(ctx context.Context, db DBTX, rec Record) error {
	body, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", rec.ID, err)
	}
	grand, hasGrand := rec.Totals["grand_total"]

	_, err = db.Exec(ctx, upsertPostgres,
		rec.ID,
		rec.PartitionKey,
		toPgUUID(rec.RunID),
		rec.DocType,
		toPgText(rec.DocumentNo),
		toPgDate(rec.IssueDate),
		toPgDate(rec.DueDate),
		toPgText(rec.Vendor),
		toPgText(rec.VendorID),
		toPgText(rec.CustomerID),
		toPgText(rec.Currency),
		toPgNumeric(grand, hasGrand),
		int32(rec.LineItemCount),
		toPgTimestamptz(rec.ExtractionTimestamp),
		rec.CreatedAt,
		body,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the document stored under id.
func (s *Postgres) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, selectPostgres+` WHERE id = $1`, id)
	rec, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns recent documents, newest first.
func (s *Postgres) List(ctx context.Context, partition string, limit int) ([]Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if partition != "" {
		rows, err = s.pool.Query(ctx, selectPostgres+` WHERE partition_key = $1 ORDER BY created_at DESC LIMIT $2`,
			partition, listLimit(limit))
	} else {
		rows, err = s.pool.Query(ctx, selectPostgres+` ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		id, partition string
		runID         pgtype.UUID
		createdAt     pgtype.Timestamptz
		body          []byte
	)
	if err := row.Scan(&id, &partition, &runID, &createdAt, &body); err != nil {
		return Record{}, err
	}
	return decodeRecord(id, partition, pgUUIDToString(runID), createdAt.Time, body)
}

// decodeRecord rebuilds a Record from its stored document body.
func decodeRecord(id, partition, runID string, createdAt time.Time, body []byte) (Record, error) {
	var doc cdm.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Record{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	rec := NewRecord(&doc, runID, createdAt)
	rec.ID = id
	rec.PartitionKey = partition
	return rec, nil
}
