package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement describes an external binary claimscan shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup result for one requirement. Detail carries the
// resolved path when the binary was found and an explanation when it was not.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

func (r Requirement) check() Status {
	status := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("%q not found in PATH", status.Command)
		return status
	}
	status.Available = true
	status.Detail = path
	return status
}

// CheckBinaries resolves every requirement against the current PATH.
func CheckBinaries(requirements []Requirement) []Status {
	statuses := make([]Status, len(requirements))
	for i, req := range requirements {
		statuses[i] = req.check()
	}
	return statuses
}
