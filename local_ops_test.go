package main

import (
	"errors"
	"math"
	"testing"
)

func TestAnalyzeLocal(t *testing.T) {
	content := `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	S1	S2
1	100	rsT1	A	T	.	PASS	.	GT	0/1	1/1
2	200	rsT2	G	C	.	PASS	.	GT	./.	0/0
`
	path := writeTempVCF(t, "local.vcf", content)

	report, err := analyzeLocal(path, testCatalog())
	if err != nil {
		t.Fatalf("analyzeLocal failed: %v", err)
	}

	// Variant 1: dosages [1, 2] over 2 samples -> mean 1.5 -> freq 0.75.
	if math.Abs(report.Variants[0].AlleleFrequency-0.75) > 1e-9 {
		t.Errorf("variant 1 frequency = %f, want 0.75", report.Variants[0].AlleleFrequency)
	}
	if report.Variants[0].AlleleCount != 3 {
		t.Errorf("variant 1 allele count = %d, want 3", report.Variants[0].AlleleCount)
	}

	// Variant 2: one missing call excluded from the denominator, the
	// remaining 0/0 gives frequency 0.
	if report.Variants[1].AlleleFrequency != 0 {
		t.Errorf("variant 2 frequency = %f, want 0", report.Variants[1].AlleleFrequency)
	}

	if report.AnalysisType != "local_allele_frequency" || report.TotalAlleleCount != 4 {
		t.Errorf("report header = %q with %d alleles, want local_allele_frequency with 4",
			report.AnalysisType, report.TotalAlleleCount)
	}
}

func TestAnalyzeLocal_NoSamples(t *testing.T) {
	content := `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
1	100	rsT1	A	T	.	PASS	.
`
	path := writeTempVCF(t, "sites.vcf", content)

	_, err := analyzeLocal(path, testCatalog())
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError for sites-only VCF, got %v", err)
	}
}
