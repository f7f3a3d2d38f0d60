package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cdm_documents (
		id                   TEXT PRIMARY KEY,
		partition_key        TEXT NOT NULL,
		run_id               TEXT,
		doc_type             TEXT NOT NULL,
		document_no          TEXT,
		issue_date           TEXT,
		due_date             TEXT,
		vendor               TEXT,
		vendor_id            TEXT,
		customer_id          TEXT,
		currency             TEXT,
		grand_total          REAL,
		line_item_count      INTEGER NOT NULL DEFAULT 0,
		extraction_timestamp TEXT,
		created_at           TEXT NOT NULL,
		document             TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cdm_documents_partition_idx
		ON cdm_documents (partition_key, created_at DESC)`,
}

const upsertSQLite = `
INSERT INTO cdm_documents (
	id, partition_key, run_id, doc_type, document_no, issue_date, due_date,
	vendor, vendor_id, customer_id, currency, grand_total, line_item_count,
	extraction_timestamp, created_at, document
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	partition_key = excluded.partition_key,
	run_id = excluded.run_id,
	doc_type = excluded.doc_type,
	document_no = excluded.document_no,
	issue_date = excluded.issue_date,
	due_date = excluded.due_date,
	vendor = excluded.vendor,
	vendor_id = excluded.vendor_id,
	customer_id = excluded.customer_id,
	currency = excluded.currency,
	grand_total = excluded.grand_total,
	line_item_count = excluded.line_item_count,
	extraction_timestamp = excluded.extraction_timestamp,
	created_at = excluded.created_at,
	document = excluded.document`

const selectSQLite = `SELECT id, partition_key, run_id, created_at, document FROM cdm_documents`

// created_at is stored as fixed-width UTC text so it sorts chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite stores documents in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and creates
// the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// Save upserts rec.
func (s *SQLite) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", rec.ID, err)
	}
	var grand sql.NullFloat64
	if v, ok := rec.Totals["grand_total"]; ok {
		grand = sql.NullFloat64{Float64: v, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, upsertSQLite,
		rec.ID,
		rec.PartitionKey,
		nullString(rec.RunID),
		rec.DocType,
		nullString(rec.DocumentNo),
		nullString(rec.IssueDate),
		nullString(rec.DueDate),
		nullString(rec.Vendor),
		nullString(rec.VendorID),
		nullString(rec.CustomerID),
		nullString(rec.Currency),
		grand,
		rec.LineItemCount,
		nullString(rec.ExtractionTimestamp),
		rec.CreatedAt.UTC().Format(sqliteTimeLayout),
		string(body),
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the document stored under id.
func (s *SQLite) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectSQLite+` WHERE id = ?`, id)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// List returns recent documents, newest first.
func (s *SQLite) List(ctx context.Context, partition string, limit int) ([]Record, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if partition != "" {
		rows, err = s.db.QueryContext(ctx, selectSQLite+` WHERE partition_key = ? ORDER BY created_at DESC LIMIT ?`,
			partition, listLimit(limit))
	} else {
		rows, err = s.db.QueryContext(ctx, selectSQLite+` ORDER BY created_at DESC LIMIT ?`, listLimit(limit))
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (Record, error) {
	var (
		id, partition, createdAt, body string
		runID                          sql.NullString
	)
	if err := row.Scan(&id, &partition, &runID, &createdAt, &body); err != nil {
		return Record{}, err
	}
	ts, err := time.Parse(sqliteTimeLayout, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("decode created_at for %s: %w", id, err)
	}
	return decodeRecord(id, partition, runID.String, ts, []byte(body))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
