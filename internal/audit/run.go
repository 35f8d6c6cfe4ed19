package audit

import (
	"context"
	"time"
)

// Auditor runs a full plan over the files under Root.
type Auditor struct {
	Root string
	Plan Plan
	Now  func() time.Time
}

// Run verifies every planned document and scans the raw layout. Checks never abort
// one another; the only error is a canceled context or an unreadable Root.
func (a *Auditor) Run(ctx context.Context) (Report, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	v := NewVerifier(a.Root, a.Plan)
	docs := make([]DocumentResult, 0, len(a.Plan.Documents))
	for _, spec := range a.Plan.Documents {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		docs = append(docs, v.VerifyDocument(spec))
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	layout, err := ScanRawLayout(a.Root, a.Plan.Layout)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(docs, layout, a.Plan.Layout, now()), nil
}
