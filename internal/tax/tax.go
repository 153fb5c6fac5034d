package tax

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"retex/internal/domain"
)

// Jurisdiction is one tax component levied in a region, e.g. GST at 5%.
type Jurisdiction struct {
	Name string
	Rate decimal.Decimal
}

// Table is an injected per-region rate lookup. Unknown region codes resolve
// to the configured default region, so a sale recorded under a retired or
// mistyped code still taxes at a known baseline instead of zero.
type Table struct {
	regions       map[string][]Jurisdiction
	defaultRegion string
}

func NewTable(regions map[string][]Jurisdiction, defaultRegion string) (*Table, error) {
	if len(regions) == 0 {
		return nil, errors.New("tax table requires at least one region")
	}

	normalized := make(map[string][]Jurisdiction, len(regions))
	for code, jurisdictions := range regions {
		code = normalizeRegion(code)
		if code == "" {
			return nil, errors.New("tax table region code must not be empty")
		}
		for _, j := range jurisdictions {
			if j.Name == "" {
				return nil, fmt.Errorf("region %s has a jurisdiction without a name", code)
			}
			if j.Rate.IsNegative() {
				return nil, fmt.Errorf("region %s jurisdiction %s has a negative rate", code, j.Name)
			}
		}
		normalized[code] = append([]Jurisdiction(nil), jurisdictions...)
	}

	defaultRegion = normalizeRegion(defaultRegion)
	if _, ok := normalized[defaultRegion]; !ok {
		return nil, fmt.Errorf("default region %s is not present in the table", defaultRegion)
	}

	return &Table{regions: normalized, defaultRegion: defaultRegion}, nil
}

// Canada returns the built-in provincial table. defaultRegion falls back to
// Ontario when empty.
func Canada(defaultRegion string) (*Table, error) {
	if strings.TrimSpace(defaultRegion) == "" {
		defaultRegion = "ON"
	}
	return NewTable(map[string][]Jurisdiction{
		"ON": {{Name: "HST", Rate: decimal.RequireFromString("0.13")}},
		"BC": {
			{Name: "GST", Rate: decimal.RequireFromString("0.05")},
			{Name: "PST", Rate: decimal.RequireFromString("0.07")},
		},
		"AB": {{Name: "GST", Rate: decimal.RequireFromString("0.05")}},
		"SK": {
			{Name: "GST", Rate: decimal.RequireFromString("0.05")},
			{Name: "PST", Rate: decimal.RequireFromString("0.06")},
		},
		"MB": {
			{Name: "GST", Rate: decimal.RequireFromString("0.05")},
			{Name: "PST", Rate: decimal.RequireFromString("0.07")},
		},
		"QC": {
			{Name: "GST", Rate: decimal.RequireFromString("0.05")},
			{Name: "QST", Rate: decimal.RequireFromString("0.09975")},
		},
		"NS": {{Name: "HST", Rate: decimal.RequireFromString("0.14")}},
		"NB": {{Name: "HST", Rate: decimal.RequireFromString("0.15")}},
		"NL": {{Name: "HST", Rate: decimal.RequireFromString("0.15")}},
		"PE": {{Name: "HST", Rate: decimal.RequireFromString("0.15")}},
	}, defaultRegion)
}

func (t *Table) DefaultRegion() string {
	return t.defaultRegion
}

func (t *Table) HasRegion(code string) bool {
	_, ok := t.regions[normalizeRegion(code)]
	return ok
}

// Rates returns the jurisdiction components for a region, falling back to the
// default region when the code is unknown.
func (t *Table) Rates(code string) []Jurisdiction {
	if jurisdictions, ok := t.regions[normalizeRegion(code)]; ok {
		return jurisdictions
	}
	return t.regions[t.defaultRegion]
}

// Apply computes each jurisdiction component on the taxable subtotal, rounding
// every component to whole cents independently, and returns the components
// with their summed total.
func (t *Table) Apply(code string, taxableCents int64) ([]domain.TaxLine, int64) {
	base := decimal.NewFromInt(taxableCents)

	jurisdictions := t.Rates(code)
	lines := make([]domain.TaxLine, 0, len(jurisdictions))
	total := int64(0)
	for _, j := range jurisdictions {
		amount := base.Mul(j.Rate).Round(0).IntPart()
		lines = append(lines, domain.TaxLine{Name: j.Name, Rate: j.Rate, AmountCents: amount})
		total += amount
	}
	return lines, total
}

// CombinedRate is the sum of all jurisdiction rates for a region, used for
// informational per-line tax amounts.
func (t *Table) CombinedRate(code string) decimal.Decimal {
	combined := decimal.Zero
	for _, j := range t.Rates(code) {
		combined = combined.Add(j.Rate)
	}
	return combined
}

func normalizeRegion(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
