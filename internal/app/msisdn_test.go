package app

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"841234567", "841234567", false},
		{"+258841234567", "841234567", false},
		{"258841234567", "841234567", false},
		{" 84 123 45 67 ", "841234567", false},
		{"+258 84 123 4567", "841234567", false},
		{"8412345", "", true},      // too short
		{"8412345678", "", true},   // too long
		{"84123456a", "", true},    // non-digit
		{"", "", true},
		{"+25884123456", "", true}, // 8 digits after prefix
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q) expected error, got %q", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q) unexpected error: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestValidatePhoneForMethod(t *testing.T) {
	cases := []struct {
		phone   string
		method  string
		want    string
		wantErr error
	}{
		{"841234567", "mpesa", "841234567", nil},
		{"851234567", "mpesa", "851234567", nil},
		{"+258861234567", "emola", "861234567", nil},
		{"871234567", "emola", "871234567", nil},
		{"821234567", "mkesh", "821234567", nil},
		{"831234567", "MKESH", "831234567", nil},
		{"861234567", "mpesa", "", ErrPhoneMethodMismatch},
		{"841234567", "emola", "", ErrPhoneMethodMismatch},
		{"841234567", "paypal", "", ErrUnsupportedMethod},
		{"12345", "mpesa", "", ErrInvalidPhone},
	}

	for _, tc := range cases {
		got, err := ValidatePhoneForMethod(tc.phone, tc.method)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidatePhoneForMethod(%q, %q) error = %v, want %v", tc.phone, tc.method, err, tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidatePhoneForMethod(%q, %q) unexpected error: %v", tc.phone, tc.method, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidatePhoneForMethod(%q, %q) = %q, want %q", tc.phone, tc.method, got, tc.want)
		}
	}
}
