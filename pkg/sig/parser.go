// Package sig parses the free-text dosing instructions that accompany
// medication entries. Dose, route, and frequency arrive as clinicians write
// them ("5 mg", "PO", "BID", "q6h PRN") and are normalized into structured
// form so downstream checks can reason about them.
package sig

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/medsafety-mcp-server/internal/domain"
)

var (
	dosePattern      = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(mcg|mg|g|ml|l|units?|iu|tabs?|tablets?|caps?|capsules?|puffs?|drops?|patch(?:es)?|sprays?)$`)
	doseRangePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*(mcg|mg|g|ml|units?|tabs?|tablets?)$`)
	intervalPattern  = regexp.MustCompile(`^q\s*(\d+)\s*(?:h|hr|hrs|hours?)$`)
	timesPerDay      = regexp.MustCompile(`^(\d+)\s*(?:x|times)\s*(?:/|per\s+)?(?:day|daily|d)$`)

	// Unit spellings collapsed to a canonical form.
	unitAliases = map[string]string{
		"tab": "tablet", "tabs": "tablet", "tablets": "tablet",
		"cap": "capsule", "caps": "capsule", "capsules": "capsule",
		"unit": "unit", "units": "unit", "iu": "unit",
		"patch": "patch", "patches": "patch",
		"puff": "puff", "puffs": "puff",
		"drop": "drop", "drops": "drop",
		"spray": "spray", "sprays": "spray",
	}

	// Route shorthand as written on orders, mapped to canonical routes.
	routeAliases = map[string]string{
		"po": "oral", "oral": "oral", "by mouth": "oral", "per os": "oral",
		"iv": "intravenous", "intravenous": "intravenous",
		"im": "intramuscular", "intramuscular": "intramuscular",
		"sc": "subcutaneous", "sq": "subcutaneous", "subq": "subcutaneous",
		"subcut": "subcutaneous", "subcutaneous": "subcutaneous",
		"sl": "sublingual", "sublingual": "sublingual",
		"pr": "rectal", "rectal": "rectal",
		"top": "topical", "topical": "topical",
		"inh": "inhaled", "inhaled": "inhaled", "inhalation": "inhaled",
		"td": "transdermal", "transdermal": "transdermal",
		"ophthalmic": "ophthalmic", "otic": "otic",
		"it": "intrathecal", "intrathecal": "intrathecal",
	}

	// Named frequencies with their administrations per day.
	frequencyAliases = map[string]float64{
		"qd": 1, "od": 1, "daily": 1, "once daily": 1, "every day": 1,
		"qam": 1, "qpm": 1, "qhs": 1, "at bedtime": 1, "nightly": 1,
		"bid": 2, "twice daily": 2, "twice a day": 2,
		"tid": 3, "three times daily": 3, "three times a day": 3,
		"qid": 4, "four times daily": 4, "four times a day": 4,
		"qod": 0.5, "every other day": 0.5,
		"weekly": 1.0 / 7, "once weekly": 1.0 / 7, "qweek": 1.0 / 7,
		"monthly": 1.0 / 30, "once monthly": 1.0 / 30,
	}
)

// Dose is a parsed dose quantity. HighValue is set only for ranges such as
// "1-2 tablets", in which case Value holds the low end.
type Dose struct {
	Value     float64 `json:"value"`
	HighValue float64 `json:"highValue,omitempty"`
	Unit      string  `json:"unit"`
}

// IsRange reports whether the dose was written as a range.
func (d Dose) IsRange() bool {
	return d.HighValue > 0
}

// Frequency is a parsed administration schedule. PerDay is the average number
// of administrations per day; zero means it could not be quantified.
type Frequency struct {
	PerDay float64 `json:"perDay"`
	PRN    bool    `json:"prn"`
}

// ParsedSig combines the structured pieces of one medication's instructions.
// Nil fields mean the corresponding free text was absent.
type ParsedSig struct {
	Dose      *Dose      `json:"dose,omitempty"`
	Route     string     `json:"route,omitempty"`
	Frequency *Frequency `json:"frequency,omitempty"`
}

// Parser parses dosing instructions.
type Parser struct{}

// NewParser creates a sig parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses the three sig fields of a medication reference. Empty fields
// are skipped; malformed fields produce an error naming the field.
func (p *Parser) Parse(ref domain.MedicationReference) (*ParsedSig, error) {
	parsed := &ParsedSig{}

	if ref.Dose != "" {
		dose, err := p.ParseDose(ref.Dose)
		if err != nil {
			return nil, err
		}
		parsed.Dose = dose
	}

	if ref.Route != "" {
		route, err := p.ParseRoute(ref.Route)
		if err != nil {
			return nil, err
		}
		parsed.Route = route
	}

	if ref.Frequency != "" {
		freq, err := p.ParseFrequency(ref.Frequency)
		if err != nil {
			return nil, err
		}
		parsed.Frequency = freq
	}

	return parsed, nil
}

// ParseDose parses a dose string such as "5 mg", "0.125 mcg", or "1-2 tablets".
func (p *Parser) ParseDose(input string) (*Dose, error) {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	if cleaned == "" {
		return nil, fmt.Errorf("parsing dose: %w", domain.NewValidationError("dose", "dose cannot be empty", input))
	}

	if matches := doseRangePattern.FindStringSubmatch(cleaned); matches != nil {
		low, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing dose range low %q: %w", matches[1], err)
		}
		high, err := strconv.ParseFloat(matches[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing dose range high %q: %w", matches[2], err)
		}
		if high <= low {
			return nil, fmt.Errorf("parsing dose: %w", domain.NewValidationError("dose", "range high must exceed low", input))
		}
		return &Dose{Value: low, HighValue: high, Unit: normalizeUnit(matches[3])}, nil
	}

	if matches := dosePattern.FindStringSubmatch(cleaned); matches != nil {
		value, err := strconv.ParseFloat(matches[1], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing dose value %q: %w", matches[1], err)
		}
		if value <= 0 {
			return nil, fmt.Errorf("parsing dose: %w", domain.NewValidationError("dose", "dose must be positive", input))
		}
		return &Dose{Value: value, Unit: normalizeUnit(matches[2])}, nil
	}

	return nil, fmt.Errorf("parsing dose: %w", domain.NewValidationError("dose", "unrecognized dose format", input))
}

// ParseRoute normalizes a route of administration.
func (p *Parser) ParseRoute(input string) (string, error) {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	cleaned = strings.TrimSuffix(cleaned, ".")

	if route, ok := routeAliases[cleaned]; ok {
		return route, nil
	}
	return "", fmt.Errorf("parsing route: %w", domain.NewValidationError("route", "unrecognized route", input))
}

// ParseFrequency parses a frequency string such as "BID", "q6h", "daily",
// "2x/day", or "q4h PRN". A trailing PRN marker flags the schedule as
// as-needed without changing the base cadence.
func (p *Parser) ParseFrequency(input string) (*Frequency, error) {
	cleaned := strings.ToLower(strings.TrimSpace(input))
	if cleaned == "" {
		return nil, fmt.Errorf("parsing frequency: %w", domain.NewValidationError("frequency", "frequency cannot be empty", input))
	}

	freq := &Frequency{}

	if cleaned == "prn" || cleaned == "as needed" {
		freq.PRN = true
		return freq, nil
	}
	for _, suffix := range []string{" prn", " as needed"} {
		if strings.HasSuffix(cleaned, suffix) {
			freq.PRN = true
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, suffix))
			break
		}
	}

	if perDay, ok := frequencyAliases[cleaned]; ok {
		freq.PerDay = perDay
		return freq, nil
	}

	if matches := intervalPattern.FindStringSubmatch(cleaned); matches != nil {
		hours, err := strconv.Atoi(matches[1])
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("parsing frequency: %w", domain.NewValidationError("frequency", "invalid hour interval", input))
		}
		freq.PerDay = 24.0 / float64(hours)
		return freq, nil
	}

	if matches := timesPerDay.FindStringSubmatch(cleaned); matches != nil {
		times, err := strconv.Atoi(matches[1])
		if err != nil || times <= 0 {
			return nil, fmt.Errorf("parsing frequency: %w", domain.NewValidationError("frequency", "invalid daily count", input))
		}
		freq.PerDay = float64(times)
		return freq, nil
	}

	return nil, fmt.Errorf("parsing frequency: %w", domain.NewValidationError("frequency", "unrecognized frequency format", input))
}

// normalizeUnit collapses unit spellings to a canonical form.
func normalizeUnit(unit string) string {
	if canonical, ok := unitAliases[unit]; ok {
		return canonical
	}
	return unit
}
