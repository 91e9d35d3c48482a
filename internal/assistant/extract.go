package assistant

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// strict: ORD followed by digits, e.g. ORD10009
	orderStrictRe = regexp.MustCompile(`(?i)\bORD\d+\b`)
	// loose: an "order [#/id]" prefix followed by a plausible token
	orderLooseRe = regexp.MustCompile(`(?i)order\s*(?:#|id)?\s*[:#]?\s*([A-Za-z0-9\-_]+)`)
	tokenRe      = regexp.MustCompile(`[A-Za-z0-9\-_]+`)
	intRe        = regexp.MustCompile(`\d+`)
)

// ExtractOrderID pulls an order id like ORD12345 out of free text using
// three strategies in strict-to-loose order. Returns ("", false) when
// none apply; never fails.
func ExtractOrderID(text string) (string, bool) {
	// 1) strict pattern (fast, reliable)
	if m := orderStrictRe.FindString(text); m != "" {
		return strings.ToUpper(strings.TrimSpace(m)), true
	}

	// 2) looser "order id XYZ" form
	if m := orderLooseRe.FindStringSubmatch(text); m != nil {
		candidate := strings.TrimRight(strings.ToUpper(strings.TrimSpace(m[1])), ".,!?")
		if candidate != "" {
			return candidate, true
		}
	}

	// 3) token scan for anything that looks like ORD###
	for _, tok := range tokenRe.FindAllString(text, -1) {
		upper := strings.ToUpper(tok)
		if strings.HasPrefix(upper, "ORD") && strings.ContainsAny(upper, "0123456789") {
			return upper, true
		}
	}
	return "", false
}

// ExtractQuantity returns the first integer literal in the text, or 1
// when none is present. Never fails.
func ExtractQuantity(text string) int {
	if m := intRe.FindString(text); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n > 0 {
			return n
		}
	}
	return 1
}
