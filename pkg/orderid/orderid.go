// Package orderid mints order identifiers. Chauffeur bookings carry short
// sequential codes customers can read out over the phone; other orders use
// random keys.
package orderid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	CodePrefix = "AA"
	codeDigits = 4
)

// Code formats the n-th sequential id, e.g. 1 -> AA0001. Values beyond
// 9999 widen instead of wrapping.
func Code(n int64) string {
	return fmt.Sprintf("%s%0*d", CodePrefix, codeDigits, n)
}

// ParseCode returns the sequence number of a code minted by Code.
func ParseCode(code string) (int64, bool) {
	if !strings.HasPrefix(code, CodePrefix) {
		return 0, false
	}
	digits := strings.TrimPrefix(code, CodePrefix)
	if len(digits) < codeDigits {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// NextCode returns the code after last. An empty or foreign last starts the
// sequence at AA0001.
func NextCode(last string) string {
	n, ok := ParseCode(last)
	if !ok {
		return Code(1)
	}
	return Code(n + 1)
}

// Key returns a random order key.
func Key() string {
	return uuid.NewString()
}

// IsCode reports whether id is a sequential code rather than a key.
func IsCode(id string) bool {
	_, ok := ParseCode(id)
	return ok
}
