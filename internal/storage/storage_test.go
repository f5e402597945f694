package storage

import (
	"errors"
	"testing"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"posts", "posts", false},
		{"nested/key", "nested/key", false},
		{"a//b", "a/b", false},
		{"", "", true},
		{"   ", "", true},
		{"../x", "", true},
		{"/etc/passwd", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := SanitizeKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("SanitizeKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeKey(%q) unexpected error %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestDriverIsValid(t *testing.T) {
	for _, d := range Drivers() {
		if !d.IsValid() {
			t.Errorf("%s should be valid", d)
		}
	}
	if Driver("redis").IsValid() {
		t.Errorf("redis should not be valid")
	}
}
