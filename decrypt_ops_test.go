package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInterpret(t *testing.T) {
	result := &aggregateResult{
		Frequencies:      []float64{0.25, 0.15},
		ParticipantCount: 10,
		TotalAlleleCount: 20,
	}

	report, err := interpret(result, testCatalog())
	if err != nil {
		t.Fatalf("interpret failed: %v", err)
	}

	want := &presentation{
		AnalysisType:     "allele_frequency",
		CatalogVersion:   "test-v1",
		ParticipantCount: 10,
		TotalAlleleCount: 20,
		Variants: []variantReport{
			{Gene: "GENE1", VariantID: "rsT1", Position: "1:100", AlleleFrequency: 0.25, AlleleCount: 5},
			{Gene: "GENE2", VariantID: "rsT2", Position: "2:200", AlleleFrequency: 0.15, AlleleCount: 3},
		},
	}

	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("presentation mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpret_CatalogFingerprint(t *testing.T) {
	result := &aggregateResult{
		Frequencies:        []float64{0.25, 0.15},
		ParticipantCount:   10,
		CatalogFingerprint: testCatalog().fingerprint(),
	}

	if _, err := interpret(result, testCatalog()); err != nil {
		t.Fatalf("interpret rejected the matching catalog: %v", err)
	}

	// Two variants either way, but a different panel: slot counts agree
	// and the fingerprint is the only thing standing between the result
	// and a silently mislabeled report.
	other := testCatalog()
	other.Version = "test-v2"
	_, err := interpret(result, other)
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError for wrong catalog, got %v", err)
	}
}

func TestInterpret_LengthMismatch(t *testing.T) {
	result := &aggregateResult{
		Frequencies:      []float64{0.25, 0.15, 0.1},
		ParticipantCount: 10,
	}

	_, err := interpret(result, testCatalog())
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError for slot/catalog mismatch, got %v", err)
	}
}

func TestClampUnit(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{-0.0001, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.0001, 1},
	}
	for _, c := range cases {
		if got := clampUnit(c.in); got != c.want {
			t.Errorf("clampUnit(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}
