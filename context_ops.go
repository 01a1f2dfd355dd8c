// context_ops.go: crypto context lifecycle
//
// The designated key holder creates one context per computation round.
// Its public projection (parameters + public key + round id) is what
// travels to participants and the aggregator; the private projection
// additionally carries the secret key and never crosses that boundary.
//
// Parameter validation fails closed: an unsupported scheme id or an
// invalid polynomial modulus degree is a ConfigurationError before any
// key material is generated, never a silent fallback to defaults.

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	uuid "github.com/satori/go.uuid"
	"golang.org/x/crypto/blake2b"
)

// Scheme allow-list. The protocol spends exactly one multiplicative
// level on a rational scalar (the division by allele count), which CKKS
// expresses natively; no other scheme id is accepted.
const schemeCKKS = "ckks"

const (
	defaultPolyModulusDegree = 16384
	defaultLogScale          = 40

	minPolyModulusDegree = 4096
	maxPolyModulusDegree = 32768
)

// schemeParams is the validated parameter set of one computation round.
type schemeParams struct {
	Scheme            string `json:"scheme"`
	PolyModulusDegree int    `json:"poly_modulus_degree"`
	LogScale          int    `json:"log_scale"`
}

// cryptoContext bundles scheme parameters with key material. SecretKey
// is empty in the public projection.
type cryptoContext struct {
	Params    schemeParams `json:"params"`
	RoundID   string       `json:"round_id"`
	PublicKey string       `json:"public_key"`           // base64 rlwe.PublicKey
	SecretKey string       `json:"secret_key,omitempty"` // base64 rlwe.SecretKey, private projection only
}

// validateParams normalizes zero values to defaults and checks the
// result against the allow-list. Everything downstream assumes a
// validated parameter set.
func validateParams(p schemeParams) (schemeParams, error) {
	if p.Scheme == "" {
		p.Scheme = schemeCKKS
	}
	if p.PolyModulusDegree == 0 {
		p.PolyModulusDegree = defaultPolyModulusDegree
	}
	if p.LogScale == 0 {
		p.LogScale = defaultLogScale
	}

	if p.Scheme != schemeCKKS {
		return p, configErrorf("unsupported scheme %q (allowed: %s)", p.Scheme, schemeCKKS)
	}

	d := p.PolyModulusDegree
	if d&(d-1) != 0 || d < minPolyModulusDegree || d > maxPolyModulusDegree {
		return p, configErrorf("invalid poly_modulus_degree %d: must be a power of two in [%d, %d]",
			d, minPolyModulusDegree, maxPolyModulusDegree)
	}

	if p.LogScale < 30 || p.LogScale > 50 {
		return p, configErrorf("invalid log_scale %d: must be in [30, 50]", p.LogScale)
	}

	return p, nil
}

// fingerprint identifies the parameter set. Ciphertexts and contexts
// with different fingerprints must never be combined.
func (p schemeParams) fingerprint() string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("params|%s|%d|%d", p.Scheme, p.PolyModulusDegree, p.LogScale)))
	return fmt.Sprintf("%x", sum[:16])
}

// makeContext generates fresh key material for a new computation round
// under validated parameters and returns the private context.
func makeContext(p schemeParams) (*cryptoContext, error) {
	p, err := validateParams(p)
	if err != nil {
		return nil, err
	}

	provider, err := providerFor(p.Scheme)
	if err != nil {
		return nil, err
	}

	pk, sk, err := provider.generateKeys(p)
	if err != nil {
		return nil, err
	}

	return &cryptoContext{
		Params:    p,
		RoundID:   uuid.NewV4().String(),
		PublicKey: pk,
		SecretKey: sk,
	}, nil
}

// publicProjection strips the secret key. The result can encrypt and
// run homomorphic operations but cannot decrypt, and deriving the
// secret key from it is as hard as breaking the scheme.
func (c *cryptoContext) publicProjection() *cryptoContext {
	return &cryptoContext{
		Params:    c.Params,
		RoundID:   c.RoundID,
		PublicKey: c.PublicKey,
	}
}

func (c *cryptoContext) canEncrypt() bool { return c.PublicKey != "" }
func (c *cryptoContext) canDecrypt() bool { return c.SecretKey != "" }

// serialize renders the context as an opaque base64 blob for transport.
func (c *cryptoContext) serialize() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to serialize context: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// parseContext decodes a serialized context and re-validates its
// parameters, so a tampered or stale blob fails here rather than deep
// inside the scheme backend.
func parseContext(blob string) (*cryptoContext, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, configErrorf("failed to decode context: %v", err)
	}

	var c cryptoContext
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, configErrorf("failed to parse context: %v", err)
	}

	if c.Params, err = validateParams(c.Params); err != nil {
		return nil, err
	}
	if c.RoundID == "" {
		return nil, configErrorf("context has no round id")
	}
	if c.PublicKey == "" {
		return nil, configErrorf("context has no public key")
	}

	return &c, nil
}
