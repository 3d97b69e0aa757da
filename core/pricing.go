package core

import (
	"fmt"
	"strings"
)

// ParseAmountCents converts a submitted decimal string into integer cents.
// The third decimal digit rounds half away from zero, so "10", "10.0",
// "10.00" and "10.004" all parse to 1000 while "10.005" parses to 1001.
func ParseAmountCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("core: amount is required")
	}
	negative := false
	switch raw[0] {
	case '-':
		negative = true
		raw = raw[1:]
	case '+':
		raw = raw[1:]
	}
	if raw == "" || raw == "." {
		return 0, fmt.Errorf("core: invalid amount %q", raw)
	}

	whole, frac, _ := strings.Cut(raw, ".")
	if strings.Contains(frac, ".") {
		return 0, fmt.Errorf("core: invalid amount %q", raw)
	}
	if whole == "" {
		whole = "0"
	}

	var cents int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("core: invalid amount %q", raw)
		}
		cents = cents*10 + int64(r-'0')
		if cents < 0 {
			return 0, fmt.Errorf("core: amount %q overflows", raw)
		}
	}
	cents *= 100

	var fracCents int64
	for i, r := range frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("core: invalid amount %q", raw)
		}
		digit := int64(r - '0')
		switch i {
		case 0:
			fracCents += digit * 10
		case 1:
			fracCents += digit
		case 2:
			if digit >= 5 {
				fracCents++
			}
		default:
			// digits past the third carry no weight
		}
	}
	cents += fracCents
	if negative {
		cents = -cents
	}
	return cents, nil
}

// AmountChanged compares a submitted decimal against a stored cents value at
// cents precision. Unparseable input counts as changed so validation runs.
func AmountChanged(submitted string, storedCents int64) bool {
	cents, err := ParseAmountCents(submitted)
	if err != nil {
		return true
	}
	return cents != storedCents
}

// FormatAmountCents renders cents as a plain decimal with two places.
func FormatAmountCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
