package audit

// Kind classifies a check for the error taxonomy.
type Kind string

const (
	KindMissingInput Kind = "missing_input"
	KindSchema       Kind = "schema"
	KindConsistency  Kind = "consistency"
	KindHygiene      Kind = "hygiene"
)

// CheckResult is one line of the per-document checklist.
type CheckResult struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Kind     Kind   `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Path     string `json:"path,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Depth    int    `json:"depth"`
}

// DocumentResult collects every check run against one derived document.
type DocumentResult struct {
	Name   string        `json:"name"`
	Path   string        `json:"path"`
	Exists bool          `json:"exists"`
	Checks []CheckResult `json:"checks"`
	Notes  []string      `json:"notes,omitempty"`
}

// Status is the worst status among the checks; a missing document is FAIL.
func (d DocumentResult) Status() Status {
	if !d.Exists {
		return StatusFail
	}
	out := StatusPass
	for _, c := range d.Checks {
		out = Worst(out, c.Status)
	}
	return out
}

func (d *DocumentResult) add(c CheckResult) CheckResult {
	d.Checks = append(d.Checks, c)
	return c
}

func (d *DocumentResult) note(msg string) {
	d.Notes = append(d.Notes, msg)
}
