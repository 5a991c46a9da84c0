package postgres

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func float64ToNumeric(f float64) pgtype.Numeric {
	var n pgtype.Numeric
	// Scan via decimal string keeps two-decimal money values exact.
	_ = n.Scan(strconv.FormatFloat(f, 'f', 2, 64))
	return n
}

func float64ToNumericPrecise(f float64) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(strconv.FormatFloat(f, 'f', -1, 64))
	return n
}

func numericToFloat64(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	v, err := n.Float64Value()
	if err != nil {
		return 0
	}
	return v.Float64
}

func pgtimeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func textToPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func ptrToText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
