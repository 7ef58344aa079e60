package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/model"
)

// Serial number validation constants
const (
	MinSerialNoLength = 4
	MaxSerialNoLength = 64
)

// Remarks are free text but bounded to keep payloads sane
const MaxRemarksLength = 2000

// Visit dates are accepted either as a calendar day or a full instant.
var visitDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

var serialNoRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9\-]*$`)

// ValidateSerialNo validates a projector serial number and returns the
// normalized (upper-cased, trimmed) version.
func ValidateSerialNo(serial string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(serial))

	if len(normalized) < MinSerialNoLength {
		return "", fmt.Errorf("serial number must be at least %d characters", MinSerialNoLength)
	}
	if len(normalized) > MaxSerialNoLength {
		return "", fmt.Errorf("serial number cannot exceed %d characters", MaxSerialNoLength)
	}
	if !serialNoRegex.MatchString(normalized) {
		return "", fmt.Errorf("invalid serial number format: %s", serial)
	}

	return normalized, nil
}

// ParseVisitDate parses a scheduled visit date, accepting RFC3339 instants or
// plain YYYY-MM-DD days.
func ParseVisitDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("visit date is required")
	}

	for _, layout := range visitDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid visit date: %s (expected RFC3339 or YYYY-MM-DD)", raw)
}

// ValidateRemarks bounds free-text remarks.
func ValidateRemarks(remarks string) error {
	if len(remarks) > MaxRemarksLength {
		return fmt.Errorf("remarks cannot exceed %d characters", MaxRemarksLength)
	}
	return nil
}

// ValidateRunningHours rejects negative meter readings.
func ValidateRunningHours(hours *float64) error {
	if hours != nil && *hours < 0 {
		return fmt.Errorf("running hours cannot be negative")
	}
	return nil
}

// ValidateRequired checks if a string field is not empty.
func ValidateRequired(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateSiteInput validates all required fields for creating a new site.
func ValidateSiteInput(site *model.Site) []string {
	var errs []string

	if err := ValidateRequired("site name", site.Name); err != nil {
		errs = append(errs, err.Error())
	}
	if err := ValidateRequired("site address", site.Address); err != nil {
		errs = append(errs, err.Error())
	}
	if err := ValidateRequired("site contact", site.Contact); err != nil {
		errs = append(errs, err.Error())
	}
	if len(site.Name) > 255 {
		errs = append(errs, "site name cannot exceed 255 characters")
	}

	return errs
}

// ValidateProjectorInput validates all required fields for creating a new
// projector and normalizes its serial number in place.
func ValidateProjectorInput(projector *model.Projector) []string {
	var errs []string

	if err := ValidateRequired("projector model", projector.Model); err != nil {
		errs = append(errs, err.Error())
	}

	normalized, err := ValidateSerialNo(projector.SerialNo)
	if err != nil {
		errs = append(errs, err.Error())
	} else {
		projector.SerialNo = normalized
	}

	if projector.SiteID == uuid.Nil {
		errs = append(errs, "site id is required")
	}

	return errs
}
