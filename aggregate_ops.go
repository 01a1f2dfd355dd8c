// aggregate_ops.go: the aggregation circuit
//
// The aggregator folds participant ciphertexts into one encrypted sum,
// then spends the protocol's single multiplicative level on a scalar
// multiply by 1/(participants * ploidy). It only ever holds the public
// context, so it cannot decrypt anything it touches.
//
// Homomorphic addition is associative and commutative, so ciphertexts
// may arrive and fold in any order: a streaming accumulator and a batch
// pass produce the same aggregate. The accumulator is the only shared
// mutable state in the pipeline and is guarded by a single mutex, which
// is all the coordination concurrent uploads need.

package main

import "sync"

// accumulator folds ciphertexts incrementally as uploads arrive.
type accumulator struct {
	mu sync.Mutex

	ctx      *cryptoContext
	provider schemeProvider

	// Metadata of the first folded envelope; every later envelope must
	// match it exactly.
	meta  *ciphertextEnvelope
	sum   string
	count int
}

// newAccumulator starts an empty aggregation round under a public
// context. A private context is refused outright: the aggregator must
// never be in a position to decrypt.
func newAccumulator(ctx *cryptoContext) (*accumulator, error) {
	if ctx.canDecrypt() {
		return nil, configErrorf("aggregator must not hold a private context")
	}
	provider, err := providerFor(ctx.Params.Scheme)
	if err != nil {
		return nil, err
	}
	return &accumulator{ctx: ctx, provider: provider}, nil
}

// fold adds one participant envelope into the running sum after the
// compatibility gate. Safe for concurrent use.
func (a *accumulator) fold(env *ciphertextEnvelope) error {
	if err := a.checkCompatible(env); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count == 0 {
		a.meta = env
		a.sum = env.Ciphertext
		a.count = 1
		return nil
	}

	if err := a.checkMatchesRound(env); err != nil {
		return err
	}

	sum, err := a.provider.add(a.ctx, a.sum, env.Ciphertext)
	if err != nil {
		return err
	}
	a.sum = sum
	a.count++
	return nil
}

// checkCompatible rejects envelopes that do not belong to this context:
// wrong scheme, wrong parameter set, wrong round, or an envelope that
// was already aggregated. Mismatches are errors, never silent skips.
func (a *accumulator) checkCompatible(env *ciphertextEnvelope) error {
	if env.Scaled || env.Participants != 0 {
		return configErrorf("refusing to fold an already-aggregated ciphertext")
	}
	if env.Scheme != a.ctx.Params.Scheme {
		return configErrorf("ciphertext scheme %q does not match context scheme %q",
			env.Scheme, a.ctx.Params.Scheme)
	}
	if env.ParamsFingerprint != a.ctx.Params.fingerprint() {
		return configErrorf("ciphertext parameter set %s does not match context %s",
			env.ParamsFingerprint, a.ctx.Params.fingerprint())
	}
	if env.RoundID != a.ctx.RoundID {
		return configErrorf("ciphertext belongs to round %s, not %s", env.RoundID, a.ctx.RoundID)
	}
	return nil
}

// checkMatchesRound compares an envelope against the first folded one.
// Caller holds the mutex.
func (a *accumulator) checkMatchesRound(env *ciphertextEnvelope) error {
	if env.CatalogFingerprint != a.meta.CatalogFingerprint {
		return configErrorf("ciphertext catalog %s does not match round catalog %s",
			env.CatalogFingerprint, a.meta.CatalogFingerprint)
	}
	if env.VectorLen != a.meta.VectorLen {
		return configErrorf("ciphertext vector length %d does not match round length %d",
			env.VectorLen, a.meta.VectorLen)
	}
	if env.HasCountSlot != a.meta.HasCountSlot {
		return configErrorf("ciphertext count-slot layout does not match round layout")
	}
	return nil
}

// finalize closes the round: it divides the encrypted sum by
// participants * ploidy (one scalar multiply — the whole multiplicative
// budget) and returns the aggregate envelope. Zero folded ciphertexts
// is an EmptyInputError, not an identity aggregate.
func (a *accumulator) finalize() (*ciphertextEnvelope, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.count == 0 {
		return nil, emptyInputErrorf("no ciphertexts to aggregate")
	}

	reciprocal := 1.0 / float64(a.count*ploidy)
	scaled, err := a.provider.scalarMultiply(a.ctx, a.sum, reciprocal)
	if err != nil {
		return nil, err
	}

	return &ciphertextEnvelope{
		Scheme:             a.meta.Scheme,
		ParamsFingerprint:  a.meta.ParamsFingerprint,
		CatalogFingerprint: a.meta.CatalogFingerprint,
		RoundID:            a.meta.RoundID,
		VectorLen:          a.meta.VectorLen,
		HasCountSlot:       a.meta.HasCountSlot,
		Participants:       a.count,
		Scaled:             true,
		Ciphertext:         scaled,
	}, nil
}

// aggregate is the batch form: fold every envelope, then finalize.
// Identical result to any streaming or concurrent fold order.
func aggregate(envelopes []*ciphertextEnvelope, ctx *cryptoContext) (*ciphertextEnvelope, error) {
	acc, err := newAccumulator(ctx)
	if err != nil {
		return nil, err
	}
	for _, env := range envelopes {
		if err := acc.fold(env); err != nil {
			return nil, err
		}
	}
	return acc.finalize()
}
