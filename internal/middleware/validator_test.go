package middleware

import (
	"errors"
	"testing"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

var (
	pngHead  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHead = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	gifHead  = []byte("GIF89a\x01\x00\x01\x00")
)

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"acme", true},
		{"team_1-b", true},
		{"", false},
		{"bad tenant", false},
		{"../etc", false},
	}
	for _, tt := range tests {
		if err := ValidateTenantID(tt.in); (err == nil) != tt.ok {
			t.Errorf("ValidateTenantID(%q) = %v, want ok=%v", tt.in, err, tt.ok)
		}
	}
}

func TestValidateSonificationID(t *testing.T) {
	if err := ValidateSonificationID("3f2b8c1e-6a4d-4c8e-9b1a-0d2e3f4a5b6c"); err != nil {
		t.Errorf("valid uuid rejected: %v", err)
	}
	for _, bad := range []string{"", "123", "3f2b8c1e-6a4d"} {
		if err := ValidateSonificationID(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ValidateSonificationID(%q) = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 10, false},
		{"  ", 10, false},
		{"15", 15, false},
		{"0", 0, false},
		{"1000", 1000, false},
		{"12.7", 12, false},
		{"ten", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"-Inf", 0, true},
		{"1e300", 0, true},
		{"99999999999999999999", 0, true},
		{"-3", -3, false},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.raw, 10)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ParseDuration(%q) err = %v, want ErrInvalidInput", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestValidateImageUpload(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		ok   bool
	}{
		{"photo.png", pngHead, true},
		{"photo.JPG", jpegHead, true},
		{"photo.jpeg", jpegHead, true},
		{"photo.gif", gifHead, false},
		{"photo.png", gifHead, false},
		{"notes.txt", []byte("hello"), false},
	}
	for _, tt := range tests {
		err := ValidateImageUpload(tt.name, tt.head)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateImageUpload(%q) = %v, want ok=%v", tt.name, err, tt.ok)
		}
		if err != nil && !errors.Is(err, domain.ErrUnsupportedMedia) {
			t.Errorf("ValidateImageUpload(%q) = %v, want ErrUnsupportedMedia", tt.name, err)
		}
	}
}

func TestClampHelpers(t *testing.T) {
	if ValidateLimit(0) != 20 || ValidateLimit(500) != 100 || ValidateLimit(5) != 5 {
		t.Error("ValidateLimit bounds")
	}
	if ValidateDays(-1) != 7 || ValidateDays(1000) != 365 {
		t.Error("ValidateDays bounds")
	}
	if ValidatePage(0) != 1 || ValidatePage(3) != 3 {
		t.Error("ValidatePage bounds")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString(" city\x00\x07 street "); got != "city street" {
		t.Errorf("SanitizeString = %q", got)
	}
}

func TestValidateStatus(t *testing.T) {
	if err := ValidateStatus("success"); err != nil {
		t.Errorf("success rejected: %v", err)
	}
	if err := ValidateStatus("done"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("ValidateStatus(done) = %v", err)
	}
}
