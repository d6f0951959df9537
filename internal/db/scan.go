package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/ldi/pbltrack/internal/timeline"
)

// feedbackTimeLayout matches strftime('%Y-%m-%d %H:%M:%f') in the schema.
const feedbackTimeLayout = "2006-01-02 15:04:05.000"

// Calendar dates are stored as YYYY-MM-DD text so that no offset can shift them.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timeline.FormatDate(*t)
}

func parseNullDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := timeline.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// timestampArg renders t the way CURRENT_TIMESTAMP does, in UTC.
func timestampArg(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// prefixed qualifies a comma separated column list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
