// Package labor extracts headline figures from a saved Maryland Department of Labor
// monthly employment release.
package labor

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrPhraseNotFound = errors.New("expected phrase not found in release")

const (
	GainersHeader = "The five sectors with the largest employment gains in August"
	LosersHeader  = "The five sectors with the largest estimated employment losses in August"
)

// Highlights are the headline numbers of a release. Job changes are signed: losses
// are negative.
type Highlights struct {
	JobsChangeTotal          int     `json:"jobs_change_total"`
	FederalJobsChange        int     `json:"federal_jobs_change"`
	FederalJobsChangeYTD     int     `json:"federal_jobs_change_ytd"`
	UnemploymentRate         float64 `json:"unemployment_rate"`
	PriorUnemploymentRate    float64 `json:"prior_unemployment_rate"`
	NationalUnemploymentRate float64 `json:"national_unemployment_rate"`
}

// SectorChange is one entry of a top gainers or losers list.
type SectorChange struct {
	Sector     string `json:"sector"`
	JobsChange int    `json:"jobs_change"`
}

// Release is the parsed content of one news release.
type Release struct {
	Highlights Highlights     `json:"highlights"`
	TopGainers []SectorChange `json:"top_gainers"`
	TopLosers  []SectorChange `json:"top_losers"`
}

var (
	totalRe      = regexp.MustCompile(`(?i)workforce (decreased|declined|increased|grew|gained) by\s+([\-\+]?[0-9,]+) jobs`)
	federalRe    = regexp.MustCompile(`(?i)loss of (?:another\s*)?([\-\+]?[0-9,]+) federal jobs in August`)
	federalYTDRe = regexp.MustCompile(`(?i)lost\s+([\-\+]?[0-9,]+) federal jobs since January\s*2025`)
	rateRe       = regexp.MustCompile(`(?i)unemployment rate (?:increased|decreased|rose|fell) from\s*([0-9]+\.[0-9])\s*percent to\s*([0-9]+\.[0-9])\s*percent`)
	nationalRe   = regexp.MustCompile(`(?i)national rate \(([0-9]+\.[0-9]) percent vs ([0-9]+\.[0-9]) percent\)`)
	sectorRe     = regexp.MustCompile(`(?s)(.+?)\s*\(([\-\+]?[0-9,]+)\s+jobs?\)`)
)

// Parse extracts every figure from text. Any missing phrase is an error so a partial
// release is never written.
func Parse(text string) (Release, error) {
	var r Release
	var errs []error

	if m := totalRe.FindStringSubmatch(text); m == nil {
		errs = append(errs, missing("workforce change"))
	} else {
		n, err := parseInt(m[2])
		if err != nil {
			errs = append(errs, err)
		}
		r.Highlights.JobsChangeTotal = signed(n, m[2], isLoss(m[1]))
	}
	if n, raw, err := firstInt(federalRe, text, "federal jobs in August"); err != nil {
		errs = append(errs, err)
	} else {
		r.Highlights.FederalJobsChange = signed(n, raw, true)
	}
	if n, raw, err := firstInt(federalYTDRe, text, "federal jobs since January 2025"); err != nil {
		errs = append(errs, err)
	} else {
		r.Highlights.FederalJobsChangeYTD = signed(n, raw, true)
	}
	if m := rateRe.FindStringSubmatch(text); m == nil {
		errs = append(errs, missing("state unemployment rate"))
	} else {
		var err error
		if r.Highlights.PriorUnemploymentRate, err = parseRate(m[1]); err != nil {
			errs = append(errs, err)
		}
		if r.Highlights.UnemploymentRate, err = parseRate(m[2]); err != nil {
			errs = append(errs, err)
		}
	}
	if m := nationalRe.FindStringSubmatch(text); m == nil {
		errs = append(errs, missing("national unemployment rate"))
	} else {
		var err error
		if r.Highlights.NationalUnemploymentRate, err = parseRate(m[2]); err != nil {
			errs = append(errs, err)
		}
	}

	var err error
	if r.TopGainers, err = SectorChanges(text, GainersHeader); err != nil {
		errs = append(errs, err)
	}
	if r.TopLosers, err = SectorChanges(text, LosersHeader); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Release{}, errors.Join(errs...)
	}
	return r, nil
}

// SectorChanges parses the "<header> were: A (N jobs); B (M jobs)." list.
func SectorChanges(text, header string) ([]SectorChange, error) {
	re := regexp.MustCompile(`(?is)` + regexp.QuoteMeta(header) + `\s*were:\s*(.+?)\.(?:\s|$)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, missing("sector list: " + header)
	}
	var out []SectorChange
	for _, part := range strings.Split(m[1], ";") {
		sm := sectorRe.FindStringSubmatch(strings.TrimSpace(part))
		if sm == nil {
			continue
		}
		n, err := parseInt(sm[2])
		if err != nil {
			return nil, err
		}
		out = append(out, SectorChange{Sector: strings.Join(strings.Fields(sm[1]), " "), JobsChange: n})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no entries under %q", ErrPhraseNotFound, header)
	}
	return out, nil
}

func firstInt(re *regexp.Regexp, text, what string) (int, string, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, "", missing(what)
	}
	n, err := parseInt(m[1])
	return n, m[1], err
}

func parseInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimPrefix(raw, "+"), ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return n, nil
}

func parseRate(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse rate %q: %w", raw, err)
	}
	return f, nil
}

// signed negates a loss unless the release already printed a sign.
func signed(n int, raw string, loss bool) int {
	if loss && !strings.HasPrefix(raw, "-") && !strings.HasPrefix(raw, "+") {
		return -n
	}
	return n
}

func isLoss(verb string) bool {
	switch strings.ToLower(verb) {
	case "decreased", "declined":
		return true
	}
	return false
}

func missing(what string) error {
	return fmt.Errorf("%w: %s", ErrPhraseNotFound, what)
}
