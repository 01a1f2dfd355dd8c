package main

import (
	"errors"
	"math"
	"sync"
	"testing"
)

// CKKS is approximate; one rescaled level at the test scale leaves far
// more precision than this.
const tolerance = 1e-3

var (
	testCtxOnce sync.Once
	testCtxVal  *cryptoContext
	testCtxErr  error
)

// testContext returns one shared private context with small parameters
// so each test does not pay for key generation.
func testContext(t *testing.T) *cryptoContext {
	t.Helper()
	testCtxOnce.Do(func() {
		testCtxVal, testCtxErr = makeContext(schemeParams{PolyModulusDegree: 4096})
	})
	if testCtxErr != nil {
		t.Fatalf("test context generation failed: %v", testCtxErr)
	}
	return testCtxVal
}

func encryptForTest(t *testing.T, ctx *cryptoContext, vector []int64, countSlot bool) *ciphertextEnvelope {
	t.Helper()
	env, err := encryptVector(vector, countSlot, testCatalog().fingerprint(), ctx.publicProjection())
	if err != nil {
		t.Fatalf("encryptVector failed: %v", err)
	}
	return env
}

func TestRoundTrip(t *testing.T) {
	ctx := testContext(t)
	provider, err := providerFor(ctx.Params.Scheme)
	if err != nil {
		t.Fatalf("providerFor failed: %v", err)
	}

	vector := []int64{0, 1, 2, -1, 2, 0, 1, 7}
	blob, err := provider.encryptVector(ctx.publicProjection(), vector)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	slots, err := provider.decryptVector(ctx, blob)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}

	for i, want := range vector {
		if got := int64(math.Round(slots[i])); got != want {
			t.Errorf("slot %d = %d (%f), want %d", i, got, slots[i], want)
		}
	}
}

func TestEncryptionIsRandomized(t *testing.T) {
	ctx := testContext(t)
	provider, _ := providerFor(ctx.Params.Scheme)

	vector := []int64{1, 0, 2}
	a, err := provider.encryptVector(ctx.publicProjection(), vector)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	b, err := provider.encryptVector(ctx.publicProjection(), vector)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	// Identical plaintexts under identical keys must still yield
	// different ciphertexts. Equal blobs would leak equality of inputs.
	if a == b {
		t.Fatal("two encryptions of the same vector produced identical ciphertexts")
	}
}

func TestEncrypt_Rejects(t *testing.T) {
	ctx := testContext(t)

	_, err := encryptVector(nil, false, "fp", ctx.publicProjection())
	var encErr *EncryptionError
	if !errors.As(err, &encErr) {
		t.Errorf("empty vector: expected EncryptionError, got %v", err)
	}

	noKey := &cryptoContext{Params: ctx.Params, RoundID: ctx.RoundID}
	_, err = encryptVector([]int64{1}, false, "fp", noKey)
	if !errors.As(err, &encErr) {
		t.Errorf("keyless context: expected EncryptionError, got %v", err)
	}

	huge := make([]int64, 4096) // beyond the 2048 slots of degree 4096
	_, err = encryptVector(huge, false, "fp", ctx.publicProjection())
	if !errors.As(err, &encErr) {
		t.Errorf("oversized vector: expected EncryptionError, got %v", err)
	}
}

// TestEndToEndScenario is the protocol acceptance scenario: three
// participants with dosage vectors [1,0], [2,1], [0,0] over a
// two-variant catalog, each with the trailing count slot for one
// diploid sample.
func TestEndToEndScenario(t *testing.T) {
	ctx := testContext(t)
	cat := testCatalog()

	vectors := [][]int64{
		appendCountSlot([]int64{1, 0}, 1),
		appendCountSlot([]int64{2, 1}, 1),
		appendCountSlot([]int64{0, 0}, 1),
	}

	envelopes := make([]*ciphertextEnvelope, len(vectors))
	for i, v := range vectors {
		envelopes[i] = encryptForTest(t, ctx, v, true)
	}

	agg, err := aggregate(envelopes, ctx.publicProjection())
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if agg.Participants != 3 || !agg.Scaled {
		t.Fatalf("aggregate envelope = %d participants, scaled=%v", agg.Participants, agg.Scaled)
	}

	result, err := decryptAggregate(agg, ctx)
	if err != nil {
		t.Fatalf("decryptAggregate failed: %v", err)
	}

	wantFreqs := []float64{0.5, 1.0 / 6.0}
	if len(result.Frequencies) != len(wantFreqs) {
		t.Fatalf("got %d frequencies, want %d", len(result.Frequencies), len(wantFreqs))
	}
	for i, want := range wantFreqs {
		if math.Abs(result.Frequencies[i]-want) > tolerance {
			t.Errorf("frequency[%d] = %f, want %f", i, result.Frequencies[i], want)
		}
	}
	if result.TotalAlleleCount != 6 {
		t.Errorf("total allele count = %d, want 6", result.TotalAlleleCount)
	}
	if result.CatalogFingerprint != cat.fingerprint() {
		t.Errorf("result catalog fingerprint = %s, want %s", result.CatalogFingerprint, cat.fingerprint())
	}

	report, err := interpret(result, cat)
	if err != nil {
		t.Fatalf("interpret failed: %v", err)
	}
	wantCounts := []int{3, 1}
	for i, want := range wantCounts {
		if report.Variants[i].AlleleCount != want {
			t.Errorf("allele count[%d] = %d, want %d", i, report.Variants[i].AlleleCount, want)
		}
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	ctx := testContext(t)

	envelopes := []*ciphertextEnvelope{
		encryptForTest(t, ctx, []int64{1, 0, 2}, false),
		encryptForTest(t, ctx, []int64{2, 1, 0}, false),
		encryptForTest(t, ctx, []int64{0, 2, 1}, false),
		encryptForTest(t, ctx, []int64{1, 1, 1}, false),
	}
	permuted := []*ciphertextEnvelope{envelopes[2], envelopes[0], envelopes[3], envelopes[1]}

	aggA, err := aggregate(envelopes, ctx.publicProjection())
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	aggB, err := aggregate(permuted, ctx.publicProjection())
	if err != nil {
		t.Fatalf("permuted aggregate failed: %v", err)
	}

	resA, err := decryptAggregate(aggA, ctx)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	resB, err := decryptAggregate(aggB, ctx)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}

	for i := range resA.Frequencies {
		if math.Abs(resA.Frequencies[i]-resB.Frequencies[i]) > 1e-6 {
			t.Errorf("order dependence at slot %d: %f vs %f", i, resA.Frequencies[i], resB.Frequencies[i])
		}
	}
}

func TestAccumulator_ConcurrentFolds(t *testing.T) {
	ctx := testContext(t)

	const parties = 8
	envelopes := make([]*ciphertextEnvelope, parties)
	for i := range envelopes {
		envelopes[i] = encryptForTest(t, ctx, []int64{int64(i % 3), 1}, false)
	}

	acc, err := newAccumulator(ctx.publicProjection())
	if err != nil {
		t.Fatalf("newAccumulator failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, parties)
	for i := range envelopes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = acc.fold(envelopes[i])
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent fold %d failed: %v", i, err)
		}
	}

	concurrent, err := acc.finalize()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	batch, err := aggregate(envelopes, ctx.publicProjection())
	if err != nil {
		t.Fatalf("batch aggregate failed: %v", err)
	}

	resConcurrent, err := decryptAggregate(concurrent, ctx)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	resBatch, err := decryptAggregate(batch, ctx)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}

	for i := range resBatch.Frequencies {
		if math.Abs(resConcurrent.Frequencies[i]-resBatch.Frequencies[i]) > 1e-6 {
			t.Errorf("streaming vs batch mismatch at slot %d: %f vs %f",
				i, resConcurrent.Frequencies[i], resBatch.Frequencies[i])
		}
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	ctx := testContext(t)

	_, err := aggregate(nil, ctx.publicProjection())
	var emptyErr *EmptyInputError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyInputError, got %v", err)
	}
}

func TestAggregate_RejectsPrivateContext(t *testing.T) {
	ctx := testContext(t)

	_, err := newAccumulator(ctx)
	var configErr *ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("aggregator accepted a private context: %v", err)
	}
}

func TestAggregate_RejectsMismatches(t *testing.T) {
	ctx := testContext(t)
	good := encryptForTest(t, ctx, []int64{1, 0}, false)

	var configErr *ConfigurationError

	tampered := *good
	tampered.ParamsFingerprint = "deadbeef"
	if _, err := aggregate([]*ciphertextEnvelope{&tampered}, ctx.publicProjection()); !errors.As(err, &configErr) {
		t.Errorf("parameter mismatch: expected ConfigurationError, got %v", err)
	}

	wrongRound := *good
	wrongRound.RoundID = "00000000-0000-0000-0000-000000000000"
	if _, err := aggregate([]*ciphertextEnvelope{&wrongRound}, ctx.publicProjection()); !errors.As(err, &configErr) {
		t.Errorf("round mismatch: expected ConfigurationError, got %v", err)
	}

	wrongLen := encryptForTest(t, ctx, []int64{1, 0, 2}, false)
	if _, err := aggregate([]*ciphertextEnvelope{good, wrongLen}, ctx.publicProjection()); !errors.As(err, &configErr) {
		t.Errorf("length mismatch: expected ConfigurationError, got %v", err)
	}

	// Same length, different catalog: the slots would line up but mean
	// different variants, so the fold must refuse.
	wrongCatalog, err := encryptVector([]int64{1, 0}, false, defaultCatalog().fingerprint(), ctx.publicProjection())
	if err != nil {
		t.Fatalf("encryptVector failed: %v", err)
	}
	if _, err := aggregate([]*ciphertextEnvelope{good, wrongCatalog}, ctx.publicProjection()); !errors.As(err, &configErr) {
		t.Errorf("catalog mismatch: expected ConfigurationError, got %v", err)
	}

	agg, err := aggregate([]*ciphertextEnvelope{good}, ctx.publicProjection())
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if _, err := aggregate([]*ciphertextEnvelope{agg}, ctx.publicProjection()); !errors.As(err, &configErr) {
		t.Errorf("re-aggregation: expected ConfigurationError, got %v", err)
	}
}

func TestDecrypt_Rejects(t *testing.T) {
	ctx := testContext(t)
	env := encryptForTest(t, ctx, []int64{1, 0}, false)
	agg, err := aggregate([]*ciphertextEnvelope{env}, ctx.publicProjection())
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}

	var decErr *DecryptionError

	if _, err := decryptAggregate(agg, ctx.publicProjection()); !errors.As(err, &decErr) {
		t.Errorf("public context: expected DecryptionError, got %v", err)
	}

	if _, err := decryptAggregate(env, ctx); !errors.As(err, &decErr) {
		t.Errorf("non-finalized ciphertext: expected DecryptionError, got %v", err)
	}

	foreign := *agg
	foreign.ParamsFingerprint = "deadbeef"
	if _, err := decryptAggregate(&foreign, ctx); !errors.As(err, &decErr) {
		t.Errorf("parameter mismatch: expected DecryptionError, got %v", err)
	}

	wrongRound := *agg
	wrongRound.RoundID = "00000000-0000-0000-0000-000000000000"
	if _, err := decryptAggregate(&wrongRound, ctx); !errors.As(err, &decErr) {
		t.Errorf("round mismatch: expected DecryptionError, got %v", err)
	}
}

func TestCiphertextEnvelope_SerializeRoundTrip(t *testing.T) {
	ctx := testContext(t)
	env := encryptForTest(t, ctx, []int64{1, 0}, true)

	blob, err := env.serialize()
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}
	parsed, err := parseCiphertextEnvelope(blob)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.RoundID != env.RoundID || parsed.VectorLen != env.VectorLen ||
		!parsed.HasCountSlot || parsed.Ciphertext != env.Ciphertext {
		t.Errorf("envelope round-trip mangled metadata: %+v", parsed)
	}
}
