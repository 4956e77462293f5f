package middleware

import (
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

// Input validation and sanitization utilities

var tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	// Allow alphanumeric, dash, underscore (max 64 chars)
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateSonificationID checks that id is a UUID.
func ValidateSonificationID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: sonification ID cannot be empty", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid sonification ID format", domain.ErrInvalidInput)
	}
	return nil
}

// ParseDuration reads a duration in whole seconds. An empty value yields def;
// values outside [1, max] are left for the pipeline to clamp.
func ParseDuration(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// accept "12.0" style values from browsers
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: duration %q is not a number", domain.ErrInvalidInput, raw)
		}
		if f > math.MaxInt32 || f < math.MinInt32 {
			return 0, fmt.Errorf("%w: duration %q is out of range", domain.ErrInvalidInput, raw)
		}
		n = int(f)
	}
	return n, nil
}

// ValidateImageUpload accepts JPEG and PNG uploads. head is the first bytes
// of the file and is sniffed so the extension cannot lie.
func ValidateImageUpload(filename string, head []byte) error {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png":
	default:
		return fmt.Errorf("%w: %q (allowed: .jpg, .jpeg, .png)", domain.ErrUnsupportedMedia, filename)
	}
	switch ct := http.DetectContentType(head); ct {
	case "image/jpeg", "image/png":
		return nil
	default:
		return fmt.Errorf("%w: content is %s", domain.ErrUnsupportedMedia, ct)
	}
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}
	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates the page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}

// ValidateStatus accepts the known record statuses.
func ValidateStatus(status string) error {
	switch domain.Status(status) {
	case "", domain.StatusQueued, domain.StatusRunning, domain.StatusSuccess, domain.StatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
}
