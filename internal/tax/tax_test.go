package tax

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplySingleComponentRegion(t *testing.T) {
	table, err := Canada("ON")
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	lines, total := table.Apply("ON", 5000)
	if total != 650 {
		t.Fatalf("expected 650 cents HST on 5000, got %d", total)
	}
	if len(lines) != 1 || lines[0].Name != "HST" || lines[0].AmountCents != 650 {
		t.Fatalf("unexpected tax lines: %+v", lines)
	}
}

func TestApplyMultiComponentRegionRoundsPerComponent(t *testing.T) {
	table, err := Canada("ON")
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	// QC: GST 5% and QST 9.975%, each rounded to cents on its own.
	lines, total := table.Apply("QC", 999)
	if len(lines) != 2 {
		t.Fatalf("expected 2 components for QC, got %d", len(lines))
	}
	if lines[0].AmountCents != 50 {
		t.Fatalf("expected GST 50 on 999, got %d", lines[0].AmountCents)
	}
	if lines[1].AmountCents != 100 {
		t.Fatalf("expected QST 100 on 999, got %d", lines[1].AmountCents)
	}
	if total != 150 {
		t.Fatalf("expected component sum 150, got %d", total)
	}
}

func TestUnknownRegionFallsBackToDefault(t *testing.T) {
	table, err := Canada("ON")
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	if table.HasRegion("ZZ") {
		t.Fatalf("did not expect region ZZ")
	}
	_, fromUnknown := table.Apply("ZZ", 10000)
	_, fromDefault := table.Apply("ON", 10000)
	if fromUnknown != fromDefault {
		t.Fatalf("fallback mismatch: unknown=%d default=%d", fromUnknown, fromDefault)
	}
}

func TestRegionCodeIsNormalized(t *testing.T) {
	table, err := Canada("on")
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	if table.DefaultRegion() != "ON" {
		t.Fatalf("expected normalized default ON, got %s", table.DefaultRegion())
	}
	if !table.HasRegion(" bc ") {
		t.Fatalf("expected lowercase padded code to resolve")
	}
}

func TestCombinedRate(t *testing.T) {
	table, err := Canada("ON")
	if err != nil {
		t.Fatalf("build table: %v", err)
	}

	combined := table.CombinedRate("BC")
	if !combined.Equal(decimal.RequireFromString("0.12")) {
		t.Fatalf("expected BC combined rate 0.12, got %s", combined)
	}
}

func TestNewTableRejectsMissingDefault(t *testing.T) {
	_, err := NewTable(map[string][]Jurisdiction{
		"ON": {{Name: "HST", Rate: decimal.RequireFromString("0.13")}},
	}, "BC")
	if err == nil {
		t.Fatalf("expected error for default region missing from table")
	}
}

func TestNewTableRejectsNegativeRate(t *testing.T) {
	_, err := NewTable(map[string][]Jurisdiction{
		"ON": {{Name: "HST", Rate: decimal.RequireFromString("-0.01")}},
	}, "ON")
	if err == nil {
		t.Fatalf("expected error for negative rate")
	}
}
