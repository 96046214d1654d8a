package security

import (
	"errors"
	"testing"
)

func TestValidateIdentity_PathTraversal(t *testing.T) {
	v := NewValidator(1024)

	tests := []struct {
		root      string
		name      string
		shouldErr bool
	}{
		{"/srv/artifacts", "fw.bin", false},
		{"/srv/artifacts", "v2/fw.bin", false},
		{"/srv/artifacts", "../etc/passwd", true},
		{"/srv/artifacts", "/etc/passwd", true},
		{"/srv/artifacts", "v2/../fw.bin", false},
		{"/srv/artifacts", "v2/../../etc/passwd", true},
		{"/srv/artifacts", "..", true},
		{"/srv/artifacts", "", true},
		{"", "/tmp/fw.bin", false},
		{"", "../fw.bin", false},
		{"", "  ", true},
	}

	for _, tt := range tests {
		err := v.ValidateIdentity(tt.root, tt.name)
		if tt.shouldErr && err == nil {
			t.Errorf("expected error for root=%q name=%q", tt.root, tt.name)
		}
		if !tt.shouldErr && err != nil {
			t.Errorf("unexpected error for root=%q name=%q: %v", tt.root, tt.name, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidIdentity) {
			t.Errorf("error for %q should wrap ErrInvalidIdentity: %v", tt.name, err)
		}
	}
}

func TestValidateKey(t *testing.T) {
	v := NewValidator(1024)

	tests := []struct {
		key       string
		shouldErr bool
	}{
		{"firmware/v1.bin", false},
		{"fw.bin", false},
		{"", true},
		{"/firmware/v1.bin", true},
		{"firmware/../../secret", true},
	}

	for _, tt := range tests {
		err := v.ValidateKey(tt.key)
		if (err != nil) != tt.shouldErr {
			t.Errorf("ValidateKey(%q) error = %v, shouldErr %v", tt.key, err, tt.shouldErr)
		}
	}
}

func TestValidateSize(t *testing.T) {
	v := NewValidator(100)

	if err := v.ValidateSize(50); err != nil {
		t.Errorf("expected no error for size 50, got: %v", err)
	}

	if err := v.ValidateSize(100); err != nil {
		t.Errorf("expected no error at the limit, got: %v", err)
	}

	err := v.ValidateSize(150)
	if err == nil {
		t.Fatal("expected error for size 150 exceeding limit 100")
	}
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
