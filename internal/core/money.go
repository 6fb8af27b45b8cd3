package core

import (
	"strconv"
	"strings"
)

// ParseAmount parses a whole, strictly positive amount as typed in the
// expense form. Signs, separators and decimals are rejected.
//
// Examples:
//
//	ParseAmount("500")   -> 500, nil
//	ParseAmount(" 12 ")  -> 12, nil
//	ParseAmount("0")     -> 0, ErrInvalidAmount
//	ParseAmount("12.50") -> 0, error
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("amount", "Please fill all the fields")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, NewValidationError("amount", "Please enter a valid amount (numbers only)")
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewValidationError("amount", "Please enter a valid amount (numbers only)")
	}
	if v <= 0 {
		return 0, invalidAmount()
	}
	return v, nil
}
