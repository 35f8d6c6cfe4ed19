// Package audit verifies that derived documents trace back to cached raw artifacts.
package audit

// Status is a check outcome. The zero value is unusable on purpose.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

func (s Status) rank() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarn:
		return 1
	default:
		return 2
	}
}

// Worst returns the dominant status: FAIL over WARN over PASS.
func Worst(statuses ...Status) Status {
	out := StatusPass
	for _, s := range statuses {
		if s.rank() > out.rank() {
			out = s
		}
	}
	return out
}

// ExitCode maps an overall status to the CLI exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarn:
		return 3
	default:
		return 2
	}
}
