package ticket

import "testing"

func TestOwnerKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"Alice", "alice"},
		{"Alice#1234", "alice-1234"},
		{"a b..c", "a-b-c"},
		{"__User__42__", "user-42"},
		{"Ündine", "ndine"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := OwnerKey(tt.in); got != tt.want {
			t.Errorf("OwnerKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
