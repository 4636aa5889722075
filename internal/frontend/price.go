package frontend

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTodayPercentage computes today's percentage change from the current
// price and a '+x'/'-x' delta string, rendered like "(+4.5%)". Anything not
// computable (bad delta, zero previous price) comes back as "".
func FormatTodayPercentage(currentPrice int, todayDelta string) string {
	raw := strings.TrimSpace(todayDelta)
	sign := 1
	if strings.HasPrefix(raw, "-") {
		sign = -1
	}
	if strings.HasPrefix(raw, "+") || strings.HasPrefix(raw, "-") {
		raw = raw[1:]
	}

	delta := 0
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return ""
		}
		delta = n
	}
	delta *= sign

	previous := currentPrice - delta
	if previous == 0 {
		return ""
	}

	pct := float64(delta) / float64(previous) * 100.0
	return fmt.Sprintf("(%+.1f%%)", pct)
}
