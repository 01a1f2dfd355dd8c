// local_ops.go: plaintext-only local analysis
//
// Computes the same allele-frequency report over a single participant's
// VCF without any encryption, for sanity-checking a dataset before
// joining a computation round. Unlike the encrypted path, the local
// path can exclude missing calls from its denominator because it sees
// the raw dosages.

package main

import (
	"math"

	"github.com/montanaflynn/stats"
)

// analyzeLocal encodes the VCF against the catalog and reports the
// per-variant frequencies of this one dataset.
func analyzeLocal(path string, cat *VariantCatalog) (*presentation, error) {
	vector, samples, err := encodeVCF(path, cat)
	if err != nil {
		return nil, err
	}
	if samples == 0 {
		return nil, formatErrorf("VCF has no sample columns to analyze")
	}

	reports := make([]variantReport, len(cat.Variants))
	for i, v := range cat.Variants {
		row := vector[i*samples : (i+1)*samples]

		valid := make([]float64, 0, samples)
		for _, d := range row {
			if d >= 0 {
				valid = append(valid, float64(d))
			}
		}

		var freq float64
		if len(valid) > 0 {
			mean, err := stats.Mean(valid)
			if err != nil {
				return nil, err
			}
			freq = clampUnit(mean / ploidy)
		}

		reports[i] = variantReport{
			Gene:            v.Gene,
			VariantID:       v.ID,
			Position:        v.position(),
			AlleleFrequency: freq,
			AlleleCount:     int(math.Round(freq * float64(len(valid)*ploidy))),
		}
	}

	return &presentation{
		AnalysisType:     "local_allele_frequency",
		CatalogVersion:   cat.Version,
		ParticipantCount: 1,
		TotalAlleleCount: samples * ploidy,
		Variants:         reports,
	}, nil
}
