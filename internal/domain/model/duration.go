package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// balancePattern is the validation rule for balance query responses: the body
// must start with a digit or a colon.
var balancePattern = regexp.MustCompile(`^[0-9:]`)

// maxBalanceField bounds each HH:MM:SS field so the total cannot overflow a
// time.Duration.
const maxBalanceField = 1 << 20

// LooksLikeBalance reports whether a raw balance response can be trusted.
func LooksLikeBalance(raw string) bool {
	return balancePattern.MatchString(strings.TrimSpace(raw))
}

// ParseBalance parses an HH:MM:SS balance into a duration. Hours may exceed
// two digits. The second return value is false for empty or malformed input.
func ParseBalance(s string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, false
	}

	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || n > maxBalanceField || n < -maxBalanceField {
			return 0, false
		}
		total = total*60 + n
	}

	return time.Duration(total) * time.Second, true
}

// FormatClock renders d as HH:MM:SS, truncated to whole seconds. Negative
// durations render as 00:00:00.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
