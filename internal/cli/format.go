package cli

import (
	"time"

	"github.com/ldi/pbltrack/internal/timeline"
)

func formatDate(d *time.Time) string {
	if d == nil {
		return "-"
	}
	return timeline.FormatDate(*d)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
