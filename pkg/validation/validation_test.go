package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projector-maintenance-api/internal/model"
)

func TestValidateSerialNo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid serial", "PJ-2024-0001", "PJ-2024-0001", false},
		{"lowercase is normalized", "pj-2024-0001", "PJ-2024-0001", false},
		{"surrounding whitespace trimmed", "  AB1234  ", "AB1234", false},
		{"too short", "AB1", "", true},
		{"empty", "", "", true},
		{"leading hyphen", "-ABCD", "", true},
		{"illegal characters", "AB_1234!", "", true},
		{"too long", strings.Repeat("A", MaxSerialNoLength+1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSerialNo(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVisitDate(t *testing.T) {
	t.Run("plain day", func(t *testing.T) {
		got, err := ParseVisitDate("2025-03-15")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("rfc3339 instant", func(t *testing.T) {
		got, err := ParseVisitDate("2025-03-15T09:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC), got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseVisitDate("15/03/2025")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseVisitDate("")
		assert.Error(t, err)
	})
}

func TestValidateRemarks(t *testing.T) {
	assert.NoError(t, ValidateRemarks(""))
	assert.NoError(t, ValidateRemarks("lamp replaced, filters cleaned"))
	assert.Error(t, ValidateRemarks(strings.Repeat("x", MaxRemarksLength+1)))
}

func TestValidateRunningHours(t *testing.T) {
	hours := 1250.5
	negative := -1.0

	assert.NoError(t, ValidateRunningHours(nil))
	assert.NoError(t, ValidateRunningHours(&hours))
	assert.Error(t, ValidateRunningHours(&negative))
}

func TestValidateSiteInput(t *testing.T) {
	site := &model.Site{Name: "Odeon Central", Address: "12 King St", Contact: "ops@odeon.example"}
	assert.Empty(t, ValidateSiteInput(site))

	missing := &model.Site{Name: "  "}
	errs := ValidateSiteInput(missing)
	assert.Len(t, errs, 3)
}

func TestValidateProjectorInput(t *testing.T) {
	projector := &model.Projector{
		Model:    "Barco SP4K-15",
		SerialNo: "bc-9981-x",
		SiteID:   uuid.New(),
	}

	errs := ValidateProjectorInput(projector)
	assert.Empty(t, errs)
	assert.Equal(t, "BC-9981-X", projector.SerialNo)

	bad := &model.Projector{SerialNo: "!!"}
	errs = ValidateProjectorInput(bad)
	assert.Len(t, errs, 3)
}
