// vcf_ops.go: VCF genotype encoding
//
// Reads one participant's VCF (plain or gzip) and produces the ordered
// integer vector the encryption stage consumes. One slot per catalog
// entry per sample, variant-major then sample-minor; that flattening
// order is a protocol invariant shared with every downstream stage.
//
// Each slot holds the diploid allele dosage: 0 (hom-ref), 1 (het),
// 2 (hom-alt), or -1 for a missing/undecodable call. A record that fails
// to decode degrades to -1 and the file keeps processing; only structural
// problems (no #CHROM header) abort.
//
// The encoder also owns the trailing count slot: when requested, it
// appends ploidy * samples as one extra slot so the key holder can
// recover the total allele count after aggregation. This is an explicit
// contract step of the encoder, not a side effect of encryption.

package main

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// headerLookahead bounds how many lines are scanned for the #CHROM row
// before the file is declared malformed.
const headerLookahead = 100

// vcfColumns is the minimum column count for a VCF carrying samples:
// CHROM POS ID REF ALT QUAL FILTER INFO FORMAT sample...
const vcfColumns = 9

const missingDosage = -1

type variantKey struct {
	chrom string
	pos   int64
	ref   string
	alt   string
}

// encodeVCF reads the VCF at path and returns the flattened dosage
// vector aligned to cat, plus the number of samples in the file.
// A sampleless VCF yields an empty vector and zero samples.
func encodeVCF(path string, cat *VariantCatalog) ([]int64, int, error) {
	r, err := openVCF(path)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	return encodeVCFReader(r, cat)
}

// openVCF opens a plain or gzip-compressed VCF for reading.
func openVCF(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open VCF: %v", err)
	}

	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, formatErrorf("failed to open gzip VCF: %v", err)
		}
		return &gzipReadCloser{gz: gz, f: f}, nil
	}

	return f, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	g.gz.Close()
	return g.f.Close()
}

func encodeVCFReader(r io.Reader, cat *VariantCatalog) ([]int64, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)

	sampleCount, err := scanHeader(scanner)
	if err != nil {
		return nil, 0, err
	}
	if sampleCount == 0 {
		// No sample column to index: nothing to encode.
		return []int64{}, 0, nil
	}

	// Slot index per catalog locus.
	index := make(map[variantKey]int, len(cat.Variants))
	for i, v := range cat.Variants {
		index[variantKey{chrom: v.Chrom, pos: v.Pos, ref: v.Ref, alt: v.Alt}] = i
	}

	// dosages[variant][sample], zero for catalog entries with no record.
	dosages := make([][]int64, len(cat.Variants))
	for i := range dosages {
		dosages[i] = make([]int64, sampleCount)
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < vcfColumns {
			// Structurally short record: skip rather than abort.
			continue
		}

		pos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}

		// Exact-match policy: chrom+pos+ref+alt must all agree. No fuzzy
		// alternate matching, no liftover; multi-allelic ALT strings only
		// match a catalog entry spelled identically.
		key := variantKey{chrom: normalizeChrom(fields[0]), pos: pos, ref: fields[3], alt: fields[4]}
		slot, ok := index[key]
		if !ok {
			continue
		}

		for s := 0; s < sampleCount; s++ {
			col := vcfColumns + s
			if col >= len(fields) {
				dosages[slot][s] = missingDosage
				continue
			}
			dosages[slot][s] = decodeGenotype(genotypeToken(fields[col]))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read VCF: %v", err)
	}

	// Variant-major, sample-minor flattening.
	vector := make([]int64, 0, len(cat.Variants)*sampleCount)
	for i := range dosages {
		vector = append(vector, dosages[i]...)
	}

	return vector, sampleCount, nil
}

// scanHeader advances the scanner to the #CHROM header row and returns
// the number of sample columns it declares. FormatError when no header
// row appears within the lookahead window.
func scanHeader(scanner *bufio.Scanner) (int, error) {
	for i := 0; i < headerLookahead && scanner.Scan(); i++ {
		line := scanner.Text()
		if strings.HasPrefix(line, "#CHROM") {
			cols := strings.Split(line, "\t")
			if len(cols) < vcfColumns {
				return 0, nil
			}
			return len(cols) - vcfColumns, nil
		}
		if !strings.HasPrefix(line, "#") && strings.TrimSpace(line) != "" {
			return 0, formatErrorf("VCF data before #CHROM header row")
		}
	}
	return 0, formatErrorf("no #CHROM header row within first %d lines", headerLookahead)
}

// normalizeChrom strips an optional "chr" prefix so "chr17" and "17"
// name the same chromosome.
func normalizeChrom(chrom string) string {
	return strings.TrimPrefix(chrom, "chr")
}

// genotypeToken extracts the GT subfield: the first colon-delimited
// token of a sample column.
func genotypeToken(sample string) string {
	if i := strings.IndexByte(sample, ':'); i >= 0 {
		return sample[:i]
	}
	return sample
}

// decodeGenotype sums the allele calls of a GT token into a dosage.
// Both separator styles are normalized ("0/1" unphased, "0|1" phased).
// A missing call (".") or any call that does not parse as a small
// non-negative integer yields the missing sentinel instead of an error:
// single malformed records must not abort the whole file.
func decodeGenotype(gt string) int64 {
	if gt == "" {
		return missingDosage
	}

	calls := strings.Split(strings.ReplaceAll(gt, "|", "/"), "/")

	var dosage int64
	for _, call := range calls {
		n, err := strconv.Atoi(call)
		if err != nil || n < 0 || n > 99 {
			return missingDosage
		}
		dosage += int64(n)
	}
	return dosage
}

// appendCountSlot appends the participant's allele-count contribution
// (ploidy * samples) as the trailing vector slot. The interpretation
// stage strips it after decryption.
func appendCountSlot(vector []int64, samples int) []int64 {
	return append(vector, int64(ploidy*samples))
}

// clampMissing maps the missing sentinel to zero for the encrypted path:
// under homomorphic summation a missing call must contribute no
// alternate alleles, not subtract one. The plaintext-only local analysis
// keeps the sentinel so it can exclude missing calls from its
// denominator instead.
func clampMissing(vector []int64) []int64 {
	out := make([]int64, len(vector))
	for i, v := range vector {
		if v == missingDosage {
			out[i] = 0
		} else {
			out[i] = v
		}
	}
	return out
}
