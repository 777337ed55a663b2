package enums

import "fmt"

// QuotaStatus maps to the quota_status enum in Postgres.
type QuotaStatus string

const (
	QuotaStatusActive QuotaStatus = "active"
	QuotaStatusClosed QuotaStatus = "closed"
)

var validQuotaStatuses = []QuotaStatus{
	QuotaStatusActive,
	QuotaStatusClosed,
}

// IsValid reports whether the value is a known QuotaStatus.
func (q QuotaStatus) IsValid() bool {
	for _, candidate := range validQuotaStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuotaStatus converts raw input into a QuotaStatus.
func ParseQuotaStatus(value string) (QuotaStatus, error) {
	for _, candidate := range validQuotaStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quota status %q", value)
}

// SubmissionStatus maps to the submission_status enum in Postgres.
// A submission is created pending and resolved exactly once by a
// separate reviewer.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusVerified SubmissionStatus = "verified"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

var validSubmissionStatuses = []SubmissionStatus{
	SubmissionStatusPending,
	SubmissionStatusVerified,
	SubmissionStatusRejected,
}

// IsValid reports whether the value is a known SubmissionStatus.
func (s SubmissionStatus) IsValid() bool {
	for _, candidate := range validSubmissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubmissionStatus converts raw input into a SubmissionStatus.
func ParseSubmissionStatus(value string) (SubmissionStatus, error) {
	for _, candidate := range validSubmissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission status %q", value)
}

// TeamKind distinguishes production teams from assembly teams.
type TeamKind string

const (
	TeamKindProduction TeamKind = "production"
	TeamKindAssembly   TeamKind = "assembly"
)

var validTeamKinds = []TeamKind{
	TeamKindProduction,
	TeamKindAssembly,
}

// IsValid reports whether the value is a known TeamKind.
func (k TeamKind) IsValid() bool {
	for _, candidate := range validTeamKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTeamKind converts raw input into a TeamKind.
func ParseTeamKind(value string) (TeamKind, error) {
	for _, candidate := range validTeamKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid team kind %q", value)
}
