package api

import (
	"claimscan/internal/attempts"
	"claimscan/internal/scanner"
)

// FromAttempt converts an internal attempt into its transport form.
func FromAttempt(attempt *attempts.Attempt) Attempt {
	if attempt == nil {
		return Attempt{}
	}
	dto := Attempt{
		ID:      attempt.ID,
		ItemID:  attempt.ItemID,
		Mode:    attempt.Mode,
		Source:  string(attempt.Source),
		Status:  string(attempt.Status),
		Message: attempt.Message,
	}
	if !attempt.CreatedAt.IsZero() {
		dto.CreatedAt = attempt.CreatedAt.Format(dateTimeFormat)
	}
	if attempt.ResolvedAt != nil {
		dto.ResolvedAt = attempt.ResolvedAt.Format(dateTimeFormat)
	}
	return dto
}

// FromAttempts converts a slice of attempts, preserving order.
func FromAttempts(list []*attempts.Attempt) []Attempt {
	if len(list) == 0 {
		return nil
	}
	out := make([]Attempt, 0, len(list))
	for _, attempt := range list {
		out = append(out, FromAttempt(attempt))
	}
	return out
}

// FromScannerStatus converts the coordinator snapshot.
func FromScannerStatus(status scanner.Status) ScannerStatus {
	return ScannerStatus{
		State:       string(status.State),
		Open:        status.Open,
		Device:      status.Device,
		Mode:        status.Mode,
		LastItemID:  status.LastItemID,
		LastOutcome: status.LastOutcome,
	}
}

// MergeAttemptStats flattens status-keyed counts for transport.
func MergeAttemptStats(stats map[attempts.Status]int) map[string]int {
	if len(stats) == 0 {
		return nil
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}
