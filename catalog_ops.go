// catalog_ops.go: the shared variant catalog
//
// Every participant and the aggregator work against the same ordered,
// versioned list of target variants. The order defines the slot index of
// each variant inside every encoded vector and ciphertext, so a catalog
// mismatch does not crash anything: it silently sums apples with oranges.
// To make that impossible, the catalog carries a blake2b fingerprint over
// its version and ordered entries, and every ciphertext envelope embeds
// it. Aggregation rejects any envelope whose fingerprint differs.

package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/blake2b"
)

// Diploid genomes: every sample contributes two alleles per variant.
const ploidy = 2

// VariantDescriptor identifies one target genomic variant. Immutable and
// identical across all parties.
type VariantDescriptor struct {
	Chrom string `json:"chrom" toml:"chrom"`
	Pos   int64  `json:"pos" toml:"pos"`
	Ref   string `json:"ref" toml:"ref"`
	Alt   string `json:"alt" toml:"alt"`
	Gene  string `json:"gene" toml:"gene"`
	ID    string `json:"id" toml:"id"`
}

// VariantCatalog is the versioned, ordered target variant list.
type VariantCatalog struct {
	Version  string              `json:"version" toml:"version"`
	Variants []VariantDescriptor `json:"variants" toml:"variant"`
}

// defaultCatalog returns the built-in breast-cancer allele-frequency
// panel. Deployments with their own panel load it from TOML instead.
func defaultCatalog() *VariantCatalog {
	return &VariantCatalog{
		Version: "bc-afreq-v1",
		Variants: []VariantDescriptor{
			{Chrom: "17", Pos: 43044295, Ref: "A", Alt: "C", Gene: "BRCA1", ID: "rs80357906"},
			{Chrom: "13", Pos: 32315474, Ref: "G", Alt: "A", Gene: "BRCA2", ID: "rs80359550"},
			{Chrom: "17", Pos: 7674220, Ref: "C", Alt: "T", Gene: "TP53", ID: "rs28934578"},
			{Chrom: "16", Pos: 23636248, Ref: "G", Alt: "A", Gene: "PALB2", ID: "rs180177102"},
			{Chrom: "22", Pos: 28695868, Ref: "AG", Alt: "A", Gene: "CHEK2", ID: "rs555607708"},
			{Chrom: "11", Pos: 108244076, Ref: "C", Alt: "T", Gene: "ATM", ID: "rs28904921"},
			{Chrom: "10", Pos: 87933147, Ref: "C", Alt: "T", Gene: "PTEN", ID: "rs121909229"},
			{Chrom: "19", Pos: 1220321, Ref: "C", Alt: "T", Gene: "STK11", ID: "rs59912467"},
		},
	}
}

// loadCatalog reads a catalog from a TOML file, or returns the built-in
// catalog when path is empty. The result is always validated.
func loadCatalog(path string) (*VariantCatalog, error) {
	if path == "" {
		return defaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %v", err)
	}

	var cat VariantCatalog
	if _, err := toml.Decode(string(data), &cat); err != nil {
		return nil, formatErrorf("failed to parse catalog TOML: %v", err)
	}

	if err := cat.validate(); err != nil {
		return nil, err
	}

	return &cat, nil
}

func (c *VariantCatalog) validate() error {
	if c.Version == "" {
		return formatErrorf("catalog has no version")
	}
	if len(c.Variants) == 0 {
		return formatErrorf("catalog %q has no variants", c.Version)
	}

	seen := make(map[string]bool, len(c.Variants))
	for i, v := range c.Variants {
		if v.Chrom == "" || v.Pos <= 0 {
			return formatErrorf("catalog entry %d: invalid locus %s:%d", i, v.Chrom, v.Pos)
		}
		if v.Ref == "" || v.Alt == "" {
			return formatErrorf("catalog entry %d (%s): empty allele", i, v.ID)
		}
		if v.ID == "" {
			return formatErrorf("catalog entry %d: missing variant id", i)
		}
		if seen[v.ID] {
			return formatErrorf("catalog entry %d: duplicate variant id %s", i, v.ID)
		}
		seen[v.ID] = true
	}

	return nil
}

// fingerprint hashes the catalog version plus the ordered descriptors.
// Two catalogs with the same entries in a different order fingerprint
// differently, because order assigns slot indices.
func (c *VariantCatalog) fingerprint() string {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err) // keyless blake2b cannot fail
	}
	fmt.Fprintf(h, "catalog|%s\n", c.Version)
	for _, v := range c.Variants {
		fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s\n", v.Chrom, v.Pos, v.Ref, v.Alt, v.Gene, v.ID)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// position renders a descriptor locus as chrom:pos for presentation.
func (v *VariantDescriptor) position() string {
	return fmt.Sprintf("%s:%d", v.Chrom, v.Pos)
}
