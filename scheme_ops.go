// scheme_ops.go: homomorphic scheme provider
//
// The protocol pipeline never touches Lattigo types directly: it talks
// to a schemeProvider capability (encrypt a vector, add two ciphertexts,
// multiply by a plaintext scalar, decrypt). That keeps the protocol
// logic — what is computed, in what order, at what circuit depth —
// independent of the cryptographic backend.
//
// The single registered provider implements CKKS via Lattigo v6. The
// moduli chains below are sized for exactly one multiplicative level
// (the division-by-count scalar) plus rescaling margin; the circuit must
// never spend a second level.

package main

import (
	"encoding/base64"
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

// schemeProvider is the injected crypto capability. Ciphertexts and keys
// cross this interface as opaque base64 blobs; the pipeline never
// inspects their bytes.
type schemeProvider interface {
	generateKeys(p schemeParams) (publicKey, secretKey string, err error)
	encryptVector(ctx *cryptoContext, values []int64) (string, error)
	add(ctx *cryptoContext, a, b string) (string, error)
	scalarMultiply(ctx *cryptoContext, ct string, scalar float64) (string, error)
	decryptVector(ctx *cryptoContext, ct string) ([]float64, error)
}

func providerFor(scheme string) (schemeProvider, error) {
	if scheme == schemeCKKS {
		return ckksProvider{}, nil
	}
	return nil, configErrorf("no provider for scheme %q", scheme)
}

type ckksProvider struct{}

// ckksParams builds the Lattigo parameter set for a validated
// poly_modulus_degree. Chains carry one working level beyond the
// division step so rescaling never exhausts the modulus.
func ckksParams(p schemeParams) (ckks.Parameters, error) {
	var literal ckks.ParametersLiteral

	switch p.PolyModulusDegree {
	case 4096:
		literal = ckks.ParametersLiteral{
			LogN:            12,
			LogQ:            []int{50, 40, 40},
			LogP:            []int{50},
			LogDefaultScale: p.LogScale,
		}
	case 8192:
		literal = ckks.ParametersLiteral{
			LogN:            13,
			LogQ:            []int{55, 40, 40, 40},
			LogP:            []int{45, 45},
			LogDefaultScale: p.LogScale,
		}
	case 16384:
		literal = ckks.ParametersLiteral{
			LogN:            14,
			LogQ:            []int{55, 40, 40, 40, 40},
			LogP:            []int{45, 45},
			LogDefaultScale: p.LogScale,
		}
	case 32768:
		literal = ckks.ParametersLiteral{
			LogN:            15,
			LogQ:            []int{60, 45, 45, 45, 45, 45},
			LogP:            []int{50, 50},
			LogDefaultScale: p.LogScale,
		}
	default:
		return ckks.Parameters{}, configErrorf("unsupported poly_modulus_degree: %d", p.PolyModulusDegree)
	}

	params, err := ckks.NewParametersFromLiteral(literal)
	if err != nil {
		return ckks.Parameters{}, configErrorf("failed to build CKKS parameters: %v", err)
	}
	return params, nil
}

func (ckksProvider) generateKeys(p schemeParams) (string, string, error) {
	params, err := ckksParams(p)
	if err != nil {
		return "", "", err
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	pk := kgen.GenPublicKeyNew(sk)

	skBytes, err := sk.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize secret key: %v", err)
	}
	pkBytes, err := pk.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize public key: %v", err)
	}

	return base64.StdEncoding.EncodeToString(pkBytes),
		base64.StdEncoding.EncodeToString(skBytes), nil
}

// encryptVector encrypts one encoded vector under the context's public
// key. Encryption is randomized: two calls on the same vector yield
// different ciphertexts, which is a required security property.
func (ckksProvider) encryptVector(ctx *cryptoContext, values []int64) (string, error) {
	if len(values) == 0 {
		return "", encryptionErrorf("cannot encrypt an empty vector")
	}
	if !ctx.canEncrypt() {
		return "", encryptionErrorf("context lacks encryption capability")
	}

	params, err := ckksParams(ctx.Params)
	if err != nil {
		return "", err
	}
	if len(values) > params.MaxSlots() {
		return "", encryptionErrorf("vector length %d exceeds slot capacity %d", len(values), params.MaxSlots())
	}

	pkBytes, err := base64.StdEncoding.DecodeString(ctx.PublicKey)
	if err != nil {
		return "", encryptionErrorf("failed to decode public key: %v", err)
	}
	pk := rlwe.NewPublicKey(params)
	if err := pk.UnmarshalBinary(pkBytes); err != nil {
		return "", encryptionErrorf("failed to deserialize public key: %v", err)
	}

	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = float64(v)
	}

	encoder := ckks.NewEncoder(params)
	pt := ckks.NewPlaintext(params, params.MaxLevel())
	if err := encoder.Encode(floats, pt); err != nil {
		return "", encryptionErrorf("failed to encode vector: %v", err)
	}

	encryptor := rlwe.NewEncryptor(params, pk)
	ct, err := encryptor.EncryptNew(pt)
	if err != nil {
		return "", encryptionErrorf("encryption failed: %v", err)
	}

	ctBytes, err := ct.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize ciphertext: %v", err)
	}
	return base64.StdEncoding.EncodeToString(ctBytes), nil
}

// add homomorphically sums two ciphertexts from the same parameter set.
// Addition is associative and commutative, so aggregation order never
// changes the result.
func (ckksProvider) add(ctx *cryptoContext, a, b string) (string, error) {
	params, err := ckksParams(ctx.Params)
	if err != nil {
		return "", err
	}

	ctA, err := parseRawCiphertext(params, a)
	if err != nil {
		return "", err
	}
	ctB, err := parseRawCiphertext(params, b)
	if err != nil {
		return "", err
	}

	evaluator := ckks.NewEvaluator(params, nil)
	sum, err := evaluator.AddNew(ctA, ctB)
	if err != nil {
		return "", fmt.Errorf("homomorphic addition failed: %v", err)
	}

	sumBytes, err := sum.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize sum: %v", err)
	}
	return base64.StdEncoding.EncodeToString(sumBytes), nil
}

// scalarMultiply multiplies a ciphertext by a plaintext rational and
// rescales. This is the protocol's entire multiplicative budget:
// homomorphic division by a ciphertext does not exist in the scheme, so
// the mean is the sum times the precomputed reciprocal of the divisor.
func (ckksProvider) scalarMultiply(ctx *cryptoContext, ct string, scalar float64) (string, error) {
	params, err := ckksParams(ctx.Params)
	if err != nil {
		return "", err
	}

	c, err := parseRawCiphertext(params, ct)
	if err != nil {
		return "", err
	}

	evaluator := ckks.NewEvaluator(params, nil)
	scaled, err := evaluator.MulNew(c, scalar)
	if err != nil {
		return "", fmt.Errorf("scalar multiplication failed: %v", err)
	}
	if err := evaluator.Rescale(scaled, scaled); err != nil {
		return "", fmt.Errorf("rescale failed: %v", err)
	}

	scaledBytes, err := scaled.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize scaled ciphertext: %v", err)
	}
	return base64.StdEncoding.EncodeToString(scaledBytes), nil
}

// decryptVector recovers the plaintext slots of a ciphertext using the
// context's private projection.
func (ckksProvider) decryptVector(ctx *cryptoContext, ct string) ([]float64, error) {
	if !ctx.canDecrypt() {
		return nil, decryptionErrorf("context lacks the private projection")
	}

	params, err := ckksParams(ctx.Params)
	if err != nil {
		return nil, err
	}

	c, err := parseRawCiphertext(params, ct)
	if err != nil {
		return nil, err
	}

	skBytes, err := base64.StdEncoding.DecodeString(ctx.SecretKey)
	if err != nil {
		return nil, decryptionErrorf("failed to decode secret key: %v", err)
	}
	sk := rlwe.NewSecretKey(params)
	if err := sk.UnmarshalBinary(skBytes); err != nil {
		return nil, decryptionErrorf("failed to deserialize secret key: %v", err)
	}

	decryptor := rlwe.NewDecryptor(params, sk)
	pt := decryptor.DecryptNew(c)

	encoder := ckks.NewEncoder(params)
	values := make([]float64, params.MaxSlots())
	if err := encoder.Decode(pt, values); err != nil {
		return nil, decryptionErrorf("failed to decode plaintext: %v", err)
	}
	return values, nil
}

func parseRawCiphertext(params ckks.Parameters, blob string) (*rlwe.Ciphertext, error) {
	ctBytes, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, configErrorf("failed to decode ciphertext: %v", err)
	}
	ct := rlwe.NewCiphertext(params, 1, params.MaxLevel())
	if err := ct.UnmarshalBinary(ctBytes); err != nil {
		return nil, configErrorf("failed to deserialize ciphertext: %v", err)
	}
	return ct, nil
}
