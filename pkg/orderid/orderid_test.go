package orderid

import (
	"testing"

	"github.com/google/uuid"
)

func TestCode(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1, "AA0001"},
		{42, "AA0042"},
		{9999, "AA9999"},
		{10000, "AA10000"},
	}
	for _, tt := range tests {
		if got := Code(tt.n); got != tt.want {
			t.Errorf("Code(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNextCode(t *testing.T) {
	tests := []struct {
		last string
		want string
	}{
		{"", "AA0001"},
		{"AA0001", "AA0002"},
		{"AA0999", "AA1000"},
		{"AA9999", "AA10000"},
		{"BB0003", "AA0001"},
		{"AA12", "AA0001"},
	}
	for _, tt := range tests {
		if got := NextCode(tt.last); got != tt.want {
			t.Errorf("NextCode(%q) = %q, want %q", tt.last, got, tt.want)
		}
	}
}

func TestKeyIsUUIDAndNotCode(t *testing.T) {
	k := Key()
	if _, err := uuid.Parse(k); err != nil {
		t.Fatalf("key %q is not a uuid: %v", k, err)
	}
	if IsCode(k) {
		t.Error("key must not parse as a code")
	}
	if !IsCode("AA0007") {
		t.Error("AA0007 is a code")
	}
}
