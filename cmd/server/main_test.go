package main

import (
	"testing"

	"retex/internal/config"
)

func TestTaxTableFromConfigFallsBackToOntario(t *testing.T) {
	table := taxTableFromConfig(config.Config{TaxRegion: "XX"})
	if table.DefaultRegion() != "ON" {
		t.Fatalf("expected ON fallback for unknown region, got %q", table.DefaultRegion())
	}
}

func TestTaxTableFromConfigHonorsKnownRegion(t *testing.T) {
	table := taxTableFromConfig(config.Config{TaxRegion: "qc"})
	if table.DefaultRegion() != "QC" {
		t.Fatalf("expected QC default region, got %q", table.DefaultRegion())
	}
}
