package receipt

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date layout the backend stores
const DateLayout = "2006-01-02"

// dateLayouts are the input formats accepted when a user types a date
var dateLayouts = []string{
	DateLayout,
	"02.01.2006",
	"2006/01/02",
	"02-01-2006",
	"2.1.2006",
}

// NormalizeDate converts a user-entered date to YYYY-MM-DD.
// An empty input stays empty.
func NormalizeDate(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, input); err == nil {
			return d.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q (use YYYY-MM-DD)", input)
}
