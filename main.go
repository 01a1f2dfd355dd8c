// afreq-tool: secure allele-frequency aggregation CLI for SecureGenomics
//
// Parties each hold a private VCF and want the cohort-wide allele
// frequency at a fixed variant panel without revealing genotypes to
// anyone, including the aggregator. Each party encodes its genotypes,
// encrypts them under the round's public context, and uploads the
// ciphertext; the aggregator sums homomorphically and divides by the
// allele count; only the key holder can decrypt the resulting means.
//
// Usage:
//   afreq-tool <command> < input.json > output.json
//
// Commands:
//   catalog-info    Show the variant catalog and its fingerprint
//   make-context    Generate a crypto context for a new computation round
//   public-context  Derive the public projection of a private context
//   encode          Encode a VCF into a dosage vector
//   encrypt         Encrypt an encoded vector under the public context
//   aggregate       Homomorphically fold ciphertexts into the mean
//   decrypt         Decrypt a finalized aggregate (key holder only)
//   interpret       Map decrypted frequencies onto the catalog
//   local-analysis  Plaintext-only frequencies for one VCF
//   version         Print version information

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

const VERSION = "0.1.0"

// Input/Output structures for JSON communication with the orchestrator

type CatalogInfoInput struct {
	CatalogPath string `json:"catalog_path"` // Empty for the built-in catalog
}

type CatalogInfoOutput struct {
	Version     string              `json:"version"`
	Fingerprint string              `json:"fingerprint"`
	Variants    []VariantDescriptor `json:"variants"`
}

type MakeContextInput struct {
	Scheme            string `json:"scheme"`              // Allow-listed scheme id (default "ckks")
	PolyModulusDegree int    `json:"poly_modulus_degree"` // Power of two in [4096, 32768]
	LogScale          int    `json:"log_scale"`           // CKKS scale (default 40)
}

type MakeContextOutput struct {
	PrivateContext    string `json:"private_context"` // Base64 encoded, key holder only
	PublicContext     string `json:"public_context"`  // Base64 encoded, safe to distribute
	RoundID           string `json:"round_id"`
	ParamsFingerprint string `json:"params_fingerprint"`
}

type PublicContextInput struct {
	PrivateContext string `json:"private_context"` // Base64 encoded
}

type PublicContextOutput struct {
	PublicContext string `json:"public_context"` // Base64 encoded
}

type EncodeInput struct {
	VCFPath       string `json:"vcf_path"`
	CatalogPath   string `json:"catalog_path"`    // Empty for the built-in catalog
	OmitCountSlot bool   `json:"omit_count_slot"` // Skip the trailing allele-count slot
}

type EncodeOutput struct {
	Vector             []int64 `json:"vector"`
	Samples            int     `json:"samples"`
	VariantCount       int     `json:"variant_count"`
	HasCountSlot       bool    `json:"has_count_slot"`
	CatalogVersion     string  `json:"catalog_version"`
	CatalogFingerprint string  `json:"catalog_fingerprint"`
}

type EncryptInput struct {
	Vector             []int64 `json:"vector"`
	HasCountSlot       bool    `json:"has_count_slot"`
	CatalogFingerprint string  `json:"catalog_fingerprint"`
	PublicContext      string  `json:"public_context"` // Base64 encoded
}

type EncryptOutput struct {
	Ciphertext string `json:"ciphertext"` // Base64 encoded envelope
}

type AggregateInput struct {
	Ciphertexts   []string `json:"ciphertexts"`    // Base64 encoded envelopes
	PublicContext string   `json:"public_context"` // Base64 encoded
}

type AggregateOutput struct {
	AggregateCiphertext string `json:"aggregate_ciphertext"` // Base64 encoded envelope
	ParticipantCount    int    `json:"participant_count"`
}

type DecryptInput struct {
	AggregateCiphertext string `json:"aggregate_ciphertext"` // Base64 encoded envelope
	PrivateContext      string `json:"private_context"`      // Base64 encoded
}

type DecryptOutput struct {
	Frequencies        []float64 `json:"frequencies"`
	ParticipantCount   int       `json:"participant_count"`
	TotalAlleleCount   int       `json:"total_allele_count"`
	CatalogFingerprint string    `json:"catalog_fingerprint"`
}

type InterpretInput struct {
	Frequencies        []float64 `json:"frequencies"`
	ParticipantCount   int       `json:"participant_count"`
	TotalAlleleCount   int       `json:"total_allele_count"`
	CatalogFingerprint string    `json:"catalog_fingerprint"` // From the decrypt output; empty skips the check
	CatalogPath        string    `json:"catalog_path"`        // Empty for the built-in catalog
}

type LocalAnalysisInput struct {
	VCFPath     string `json:"vcf_path"`
	CatalogPath string `json:"catalog_path"` // Empty for the built-in catalog
}

type ErrorOutput struct {
	Error string `json:"error"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf(`{"version": "%s"}`, VERSION)
	case "catalog-info":
		handleCatalogInfo()
	case "make-context":
		handleMakeContext()
	case "public-context":
		handlePublicContext()
	case "encode":
		handleEncode()
	case "encrypt":
		handleEncrypt()
	case "aggregate":
		handleAggregate()
	case "decrypt":
		handleDecrypt()
	case "interpret":
		handleInterpret()
	case "local-analysis":
		handleLocalAnalysis()
	case "help", "-h", "--help":
		printUsage()
	default:
		outputError(fmt.Sprintf("Unknown command: %s", command))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `afreq-tool: secure allele-frequency aggregation CLI for SecureGenomics

Usage:
  afreq-tool <command> < input.json > output.json

Commands:
  catalog-info    Show the variant catalog and its fingerprint
  make-context    Generate a crypto context for a new computation round
  public-context  Derive the public projection of a private context
  encode          Encode a VCF into a dosage vector
  encrypt         Encrypt an encoded vector under the public context
  aggregate       Homomorphically fold ciphertexts into the mean
  decrypt         Decrypt a finalized aggregate (key holder only)
  interpret       Map decrypted frequencies onto the catalog
  local-analysis  Plaintext-only frequencies for one VCF
  version         Print version information
  help            Print this help message

All commands read JSON from stdin and write JSON to stdout.
Contexts and ciphertexts are opaque base64 blobs; pass them along, never
edit them.`)
}

func readInput() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func outputJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		outputError(fmt.Sprintf("Failed to encode output: %v", err))
		os.Exit(1)
	}
}

func outputError(msg string) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(ErrorOutput{Error: msg})
}

func parseInput(v interface{}) bool {
	inputBytes, err := readInput()
	if err != nil {
		outputError(fmt.Sprintf("Failed to read input: %v", err))
		return false
	}
	if err := json.Unmarshal(inputBytes, v); err != nil {
		outputError(fmt.Sprintf("Failed to parse input: %v", err))
		return false
	}
	return true
}

func handleCatalogInfo() {
	var input CatalogInfoInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	cat, err := loadCatalog(input.CatalogPath)
	if err != nil {
		outputError(fmt.Sprintf("Catalog load failed: %v", err))
		os.Exit(1)
	}

	outputJSON(CatalogInfoOutput{
		Version:     cat.Version,
		Fingerprint: cat.fingerprint(),
		Variants:    cat.Variants,
	})
}

func handleMakeContext() {
	var input MakeContextInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	ctx, err := makeContext(schemeParams{
		Scheme:            input.Scheme,
		PolyModulusDegree: input.PolyModulusDegree,
		LogScale:          input.LogScale,
	})
	if err != nil {
		outputError(fmt.Sprintf("Context generation failed: %v", err))
		os.Exit(1)
	}

	private, err := ctx.serialize()
	if err != nil {
		outputError(fmt.Sprintf("Context serialization failed: %v", err))
		os.Exit(1)
	}
	public, err := ctx.publicProjection().serialize()
	if err != nil {
		outputError(fmt.Sprintf("Context serialization failed: %v", err))
		os.Exit(1)
	}

	outputJSON(MakeContextOutput{
		PrivateContext:    private,
		PublicContext:     public,
		RoundID:           ctx.RoundID,
		ParamsFingerprint: ctx.Params.fingerprint(),
	})
}

func handlePublicContext() {
	var input PublicContextInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	ctx, err := parseContext(input.PrivateContext)
	if err != nil {
		outputError(fmt.Sprintf("Context parse failed: %v", err))
		os.Exit(1)
	}

	public, err := ctx.publicProjection().serialize()
	if err != nil {
		outputError(fmt.Sprintf("Context serialization failed: %v", err))
		os.Exit(1)
	}

	outputJSON(PublicContextOutput{PublicContext: public})
}

func handleEncode() {
	var input EncodeInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	cat, err := loadCatalog(input.CatalogPath)
	if err != nil {
		outputError(fmt.Sprintf("Catalog load failed: %v", err))
		os.Exit(1)
	}

	vector, samples, err := encodeVCF(input.VCFPath, cat)
	if err != nil {
		outputError(fmt.Sprintf("Encoding failed: %v", err))
		os.Exit(1)
	}

	hasCountSlot := false
	if !input.OmitCountSlot && samples > 0 {
		vector = appendCountSlot(vector, samples)
		hasCountSlot = true
	}

	outputJSON(EncodeOutput{
		Vector:             vector,
		Samples:            samples,
		VariantCount:       len(cat.Variants),
		HasCountSlot:       hasCountSlot,
		CatalogVersion:     cat.Version,
		CatalogFingerprint: cat.fingerprint(),
	})
}

func handleEncrypt() {
	var input EncryptInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	ctx, err := parseContext(input.PublicContext)
	if err != nil {
		outputError(fmt.Sprintf("Context parse failed: %v", err))
		os.Exit(1)
	}

	env, err := encryptVector(input.Vector, input.HasCountSlot, input.CatalogFingerprint, ctx)
	if err != nil {
		outputError(fmt.Sprintf("Encryption failed: %v", err))
		os.Exit(1)
	}

	blob, err := env.serialize()
	if err != nil {
		outputError(fmt.Sprintf("Ciphertext serialization failed: %v", err))
		os.Exit(1)
	}

	outputJSON(EncryptOutput{Ciphertext: blob})
}

func handleAggregate() {
	var input AggregateInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	ctx, err := parseContext(input.PublicContext)
	if err != nil {
		outputError(fmt.Sprintf("Context parse failed: %v", err))
		os.Exit(1)
	}

	envelopes := make([]*ciphertextEnvelope, len(input.Ciphertexts))
	for i, blob := range input.Ciphertexts {
		if envelopes[i], err = parseCiphertextEnvelope(blob); err != nil {
			outputError(fmt.Sprintf("Ciphertext %d parse failed: %v", i, err))
			os.Exit(1)
		}
	}

	agg, err := aggregate(envelopes, ctx)
	if err != nil {
		outputError(fmt.Sprintf("Aggregation failed: %v", err))
		os.Exit(1)
	}

	blob, err := agg.serialize()
	if err != nil {
		outputError(fmt.Sprintf("Ciphertext serialization failed: %v", err))
		os.Exit(1)
	}

	outputJSON(AggregateOutput{
		AggregateCiphertext: blob,
		ParticipantCount:    agg.Participants,
	})
}

func handleDecrypt() {
	var input DecryptInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	ctx, err := parseContext(input.PrivateContext)
	if err != nil {
		outputError(fmt.Sprintf("Context parse failed: %v", err))
		os.Exit(1)
	}

	env, err := parseCiphertextEnvelope(input.AggregateCiphertext)
	if err != nil {
		outputError(fmt.Sprintf("Ciphertext parse failed: %v", err))
		os.Exit(1)
	}

	result, err := decryptAggregate(env, ctx)
	if err != nil {
		outputError(fmt.Sprintf("Decryption failed: %v", err))
		os.Exit(1)
	}

	outputJSON(DecryptOutput{
		Frequencies:        result.Frequencies,
		ParticipantCount:   result.ParticipantCount,
		TotalAlleleCount:   result.TotalAlleleCount,
		CatalogFingerprint: result.CatalogFingerprint,
	})
}

func handleInterpret() {
	var input InterpretInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	cat, err := loadCatalog(input.CatalogPath)
	if err != nil {
		outputError(fmt.Sprintf("Catalog load failed: %v", err))
		os.Exit(1)
	}

	report, err := interpret(&aggregateResult{
		Frequencies:        input.Frequencies,
		ParticipantCount:   input.ParticipantCount,
		TotalAlleleCount:   input.TotalAlleleCount,
		CatalogFingerprint: input.CatalogFingerprint,
	}, cat)
	if err != nil {
		outputError(fmt.Sprintf("Interpretation failed: %v", err))
		os.Exit(1)
	}

	outputJSON(report)
}

func handleLocalAnalysis() {
	var input LocalAnalysisInput
	if !parseInput(&input) {
		os.Exit(1)
	}

	cat, err := loadCatalog(input.CatalogPath)
	if err != nil {
		outputError(fmt.Sprintf("Catalog load failed: %v", err))
		os.Exit(1)
	}

	report, err := analyzeLocal(input.VCFPath, cat)
	if err != nil {
		outputError(fmt.Sprintf("Local analysis failed: %v", err))
		os.Exit(1)
	}

	outputJSON(report)
}
