package model

import "time"

// LicenseStatus is the licensing requirement of a software entry.
type LicenseStatus string

const (
	// StatusYes means the software requires a corporate license.
	StatusYes LicenseStatus = "yes"
	// StatusNo means the software can be used without a corporate license.
	StatusNo LicenseStatus = "no"
	// StatusUnknown is used for input rows that carry no original status.
	StatusUnknown LicenseStatus = "unknown"
	// StatusError marks a verdict whose research failed.
	StatusError LicenseStatus = "error"
)

// Label returns the spreadsheet label for the status.
func (s LicenseStatus) Label() string {
	switch s {
	case StatusYes:
		return "Sim"
	case StatusNo:
		return "Não"
	case StatusError:
		return "Erro"
	default:
		return ""
	}
}

// SoftwareRecord is one row of the input inventory.
type SoftwareRecord struct {
	Name           string        `json:"name"`
	Version        string        `json:"version,omitempty"`
	OriginalStatus LicenseStatus `json:"original_status"`
}

// String returns the name followed by the version, if any.
func (r SoftwareRecord) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + " " + r.Version
}

// LicenseVerdict is the researched outcome for a single SoftwareRecord.
type LicenseVerdict struct {
	Record         SoftwareRecord `json:"record"`
	VerifiedStatus LicenseStatus  `json:"verified_status"`
	Confidence     int            `json:"confidence"`
	SearchedAt     time.Time      `json:"searched_at"`
	Sources        []string       `json:"sources"`
	Links          []string       `json:"links"`
	Summary        string         `json:"summary"`
}

// Failed reports whether research for the record failed.
func (v LicenseVerdict) Failed() bool {
	return v.VerifiedStatus == StatusError
}

// ErrorVerdict builds the verdict recorded when research for rec fails.
func ErrorVerdict(rec SoftwareRecord, at time.Time, cause string) LicenseVerdict {
	return LicenseVerdict{
		Record:         rec,
		VerifiedStatus: StatusError,
		Confidence:     0,
		SearchedAt:     at,
		Sources:        []string{},
		Links:          []string{},
		Summary:        cause,
	}
}

// ConfidenceBand groups confidence scores for formatting and statistics.
type ConfidenceBand string

const (
	BandHigh   ConfidenceBand = "high"   // >= 80
	BandMedium ConfidenceBand = "medium" // 50-79
	BandLow    ConfidenceBand = "low"    // < 50
)

// BandFor returns the band a confidence score falls into.
func BandFor(confidence int) ConfidenceBand {
	switch {
	case confidence >= 80:
		return BandHigh
	case confidence >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// ClampConfidence bounds a score to the 0-100 range.
func ClampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
