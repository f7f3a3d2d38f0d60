package store

// convert.go maps record fields to pgtype values. Empty or unparsable input
// becomes a NULL (Valid=false).

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgDate accepts canonical YYYY-MM-DD dates only.
func toPgDate(s string) pgtype.Date {
	t, err := time.Parse(isoDate, strings.TrimSpace(s))
	if err != nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func toPgTimestamptz(s string) pgtype.Timestamptz {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// toPgNumeric stores a total; a missing total is NULL rather than zero.
func toPgNumeric(f float64, ok bool) pgtype.Numeric {
	if !ok {
		return pgtype.Numeric{}
	}
	var n pgtype.Numeric
	if err := n.Scan(formatFloat(f)); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func formatFloat(f float64) string {
	return decimal.NewFromFloat(f).String()
}
