package attempts

import "time"

// Status represents the lifecycle of a claim attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source records how the item identifier reached the dispatcher.
type Source string

const (
	SourceCamera Source = "camera"
	SourceManual Source = "manual"
)

// Attempt is one recorded dispatch against the item service.
type Attempt struct {
	ID         string
	ItemID     string
	Mode       string
	Source     Source
	Status     Status
	Message    string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Terminal reports whether the attempt has reached a final outcome.
func (a *Attempt) Terminal() bool {
	return a.Status == StatusSucceeded || a.Status == StatusFailed
}

var allStatuses = []Status{StatusPending, StatusSucceeded, StatusFailed}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether the value names a known attempt status.
func ValidStatus(value string) bool {
	_, ok := statusSet[Status(value)]
	return ok
}
