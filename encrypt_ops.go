// encrypt_ops.go: the encryption stage
//
// Wraps an encoded genotype vector into a ciphertext envelope under the
// round's public context. The envelope carries everything the aggregator
// needs to refuse incompatible inputs — scheme id, parameter
// fingerprint, catalog fingerprint, round id, vector length — without
// ever being able to read the payload.

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ciphertextEnvelope is the serialized form of one encrypted vector.
// The Ciphertext field is the scheme provider's opaque blob.
type ciphertextEnvelope struct {
	Scheme             string `json:"scheme"`
	ParamsFingerprint  string `json:"params_fingerprint"`
	CatalogFingerprint string `json:"catalog_fingerprint"`
	RoundID            string `json:"round_id"`
	VectorLen          int    `json:"vector_len"`
	HasCountSlot       bool   `json:"has_count_slot"`

	// Set on aggregate envelopes only.
	Participants int  `json:"participants,omitempty"`
	Scaled       bool `json:"scaled,omitempty"`

	Ciphertext string `json:"ciphertext"`
}

func (e *ciphertextEnvelope) serialize() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to serialize ciphertext envelope: %v", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func parseCiphertextEnvelope(blob string) (*ciphertextEnvelope, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, configErrorf("failed to decode ciphertext envelope: %v", err)
	}
	var e ciphertextEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, configErrorf("failed to parse ciphertext envelope: %v", err)
	}
	if e.Ciphertext == "" {
		return nil, configErrorf("ciphertext envelope has no payload")
	}
	return &e, nil
}

// encryptVector encrypts one participant's encoded vector under the
// public context. Missing-call sentinels are clamped to zero first: a
// missing genotype contributes no alternate alleles to the encrypted
// sum. Pure function of its inputs; no state survives the call.
func encryptVector(vector []int64, hasCountSlot bool, catalogFP string, ctx *cryptoContext) (*ciphertextEnvelope, error) {
	if len(vector) == 0 {
		return nil, encryptionErrorf("cannot encrypt an empty vector")
	}
	if !ctx.canEncrypt() {
		return nil, encryptionErrorf("context lacks encryption capability")
	}

	provider, err := providerFor(ctx.Params.Scheme)
	if err != nil {
		return nil, err
	}

	blob, err := provider.encryptVector(ctx, clampMissing(vector))
	if err != nil {
		return nil, err
	}

	return &ciphertextEnvelope{
		Scheme:             ctx.Params.Scheme,
		ParamsFingerprint:  ctx.Params.fingerprint(),
		CatalogFingerprint: catalogFP,
		RoundID:            ctx.RoundID,
		VectorLen:          len(vector),
		HasCountSlot:       hasCountSlot,
		Ciphertext:         blob,
	}, nil
}
