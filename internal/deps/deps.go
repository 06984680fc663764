// Package deps reports whether the external executables strata shells out to
// are available on PATH.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an executable and whether a run can proceed without it.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement with the lookup outcome. Detail holds the resolved
// path when it differs from Command, or the reason the binary is unavailable.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Check resolves one requirement.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	st := Status{Requirement: req}
	if req.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return st
	}
	st.Available = true
	if path != req.Command {
		st.Detail = path
	}
	return st
}

// CheckBinaries resolves every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = Check(req)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
