package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Attempt describes a recorded claim attempt in a transport-friendly format.
type Attempt struct {
	ID         string `json:"id"`
	ItemID     string `json:"itemId"`
	Mode       string `json:"mode"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// ScannerStatus mirrors the coordinator snapshot.
type ScannerStatus struct {
	State       string `json:"state"`
	Open        bool   `json:"open"`
	Device      string `json:"device,omitempty"`
	Mode        string `json:"mode"`
	LastItemID  string `json:"lastItemId,omitempty"`
	LastOutcome string `json:"lastOutcome,omitempty"`
}

// CameraDevice describes an enumerated capture device.
type CameraDevice struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	Scanner        ScannerStatus      `json:"scanner"`
	AttemptStats   map[string]int     `json:"attemptStats,omitempty"`
	AttemptsDBPath string             `json:"attemptsDbPath,omitempty"`
	LockFilePath   string             `json:"lockFilePath,omitempty"`
	Dependencies   []DependencyStatus `json:"dependencies,omitempty"`
}

// DeviceListResponse wraps camera enumeration results.
type DeviceListResponse struct {
	Devices []CameraDevice `json:"devices"`
}

// AttemptListResponse wraps attempt history queries.
type AttemptListResponse struct {
	Attempts []Attempt `json:"attempts"`
}

// AttemptResponse wraps a single attempt lookup.
type AttemptResponse struct {
	Attempt Attempt `json:"attempt"`
}

// SubmitRequest is the body for manual payload submission.
type SubmitRequest struct {
	Payload string `json:"payload"`
}

// SubmitResponse reports the attempt created for a manual submission.
type SubmitResponse struct {
	Attempt Attempt `json:"attempt"`
}

// OpenScannerRequest optionally names the device to open.
type OpenScannerRequest struct {
	Device string `json:"device,omitempty"`
}

// ModeRequest selects the dispatch mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// ClearResponse reports how many records a clear removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}
