// decrypt_ops.go: decryption and result interpretation
//
// Only the key holder runs this stage. Decryption recovers the mean
// dosage vector, strips the trailing count slot, and interpretation maps
// each slot back onto its catalog entry for presentation.

package main

import "math"

// aggregateResult is the decrypted aggregate: one allele-frequency
// estimate per catalog slot plus the divisor bookkeeping. The catalog
// fingerprint travels along so interpretation can refuse a wrong
// catalog even when the slot counts happen to agree.
type aggregateResult struct {
	Frequencies        []float64 `json:"frequencies"`
	ParticipantCount   int       `json:"participant_count"`
	TotalAlleleCount   int       `json:"total_allele_count"`
	CatalogFingerprint string    `json:"catalog_fingerprint,omitempty"`
}

// variantReport is one row of the presentation record.
type variantReport struct {
	Gene            string  `json:"gene"`
	VariantID       string  `json:"variant_id"`
	Position        string  `json:"position"`
	AlleleFrequency float64 `json:"allele_frequency"`
	AlleleCount     int     `json:"allele_count"`
}

// presentation is the terminal artifact shown to the requesting user.
type presentation struct {
	AnalysisType     string          `json:"analysis_type"`
	CatalogVersion   string          `json:"catalog_version"`
	ParticipantCount int             `json:"participant_count"`
	TotalAlleleCount int             `json:"total_allele_count"`
	Variants         []variantReport `json:"variants"`
}

// decryptAggregate recovers the plaintext mean vector from a finalized
// aggregate envelope using the private context.
func decryptAggregate(env *ciphertextEnvelope, ctx *cryptoContext) (*aggregateResult, error) {
	if !ctx.canDecrypt() {
		return nil, decryptionErrorf("context lacks the private projection")
	}
	if !env.Scaled || env.Participants <= 0 {
		return nil, decryptionErrorf("ciphertext is not a finalized aggregate")
	}
	if env.Scheme != ctx.Params.Scheme || env.ParamsFingerprint != ctx.Params.fingerprint() {
		return nil, decryptionErrorf("ciphertext parameter set does not match the private context")
	}
	if env.RoundID != ctx.RoundID {
		return nil, decryptionErrorf("ciphertext belongs to round %s, not %s", env.RoundID, ctx.RoundID)
	}

	provider, err := providerFor(ctx.Params.Scheme)
	if err != nil {
		return nil, err
	}

	slots, err := provider.decryptVector(ctx, env.Ciphertext)
	if err != nil {
		return nil, err
	}
	if len(slots) < env.VectorLen {
		return nil, decryptionErrorf("decrypted %d slots, expected at least %d", len(slots), env.VectorLen)
	}

	values := slots[:env.VectorLen]
	divisor := env.Participants * ploidy

	// The trailing count slot decrypts to totalAlleles/divisor; scale it
	// back up and strip it. Without the slot the canonical one-sample-
	// per-participant layout applies and the divisor is the total.
	total := divisor
	if env.HasCountSlot {
		total = int(math.Round(values[len(values)-1] * float64(divisor)))
		values = values[:len(values)-1]
	}

	frequencies := make([]float64, len(values))
	for i, v := range values {
		frequencies[i] = clampUnit(v)
	}

	return &aggregateResult{
		Frequencies:        frequencies,
		ParticipantCount:   env.Participants,
		TotalAlleleCount:   total,
		CatalogFingerprint: env.CatalogFingerprint,
	}, nil
}

// interpret maps the decrypted frequencies back onto the catalog by
// slot index and derives the implied allele counts. A result carrying a
// catalog fingerprint must match the catalog it is mapped onto: equal
// slot counts alone do not mean equal catalogs.
func interpret(result *aggregateResult, cat *VariantCatalog) (*presentation, error) {
	if result.CatalogFingerprint != "" && result.CatalogFingerprint != cat.fingerprint() {
		return nil, configErrorf("result was computed against catalog %s, not %q (%s)",
			result.CatalogFingerprint, cat.Version, cat.fingerprint())
	}
	if len(result.Frequencies) != len(cat.Variants) {
		return nil, configErrorf("result has %d frequencies but catalog %q has %d variants",
			len(result.Frequencies), cat.Version, len(cat.Variants))
	}

	divisor := float64(result.ParticipantCount * ploidy)
	reports := make([]variantReport, len(cat.Variants))
	for i, v := range cat.Variants {
		freq := result.Frequencies[i]
		reports[i] = variantReport{
			Gene:            v.Gene,
			VariantID:       v.ID,
			Position:        v.position(),
			AlleleFrequency: freq,
			AlleleCount:     int(math.Round(freq * divisor)),
		}
	}

	return &presentation{
		AnalysisType:     "allele_frequency",
		CatalogVersion:   cat.Version,
		ParticipantCount: result.ParticipantCount,
		TotalAlleleCount: result.TotalAlleleCount,
		Variants:         reports,
	}, nil
}

// clampUnit pins small scheme-noise excursions back into [0, 1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
