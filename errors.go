// errors.go: error taxonomy for the allele-frequency protocol
//
// Every failure mode of the pipeline falls into one of five categories:
//
//   FormatError        malformed/missing VCF structure
//   ConfigurationError unsupported scheme or parameters, mismatched artifacts
//   EncryptionError    encryption preconditions violated
//   DecryptionError    wrong context capability or parameter mismatch
//   EmptyInputError    aggregation over zero ciphertexts
//
// Per-record genotype parse failures are NOT errors: they degrade to the
// missing sentinel and the file keeps processing. Everything else
// propagates to the caller unmodified; there are no retries here.

package main

import "fmt"

// FormatError reports a malformed VCF input (missing header row,
// structurally broken record lines).
type FormatError struct {
	msg string
}

func (e *FormatError) Error() string { return e.msg }

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{msg: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports unsupported crypto parameters, a scheme id
// outside the allow-list, or artifacts from mismatched parameter sets.
// Always fatal: the pipeline fails closed before any encryption happens.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{msg: fmt.Sprintf(format, args...)}
}

// EncryptionError reports a violated encryption precondition: empty
// vector, vector exceeding slot capacity, or a context without the
// encryption capability.
type EncryptionError struct {
	msg string
}

func (e *EncryptionError) Error() string { return e.msg }

func encryptionErrorf(format string, args ...interface{}) error {
	return &EncryptionError{msg: fmt.Sprintf(format, args...)}
}

// DecryptionError reports a decryption attempt without the private
// projection or against a ciphertext from a different parameter set.
type DecryptionError struct {
	msg string
}

func (e *DecryptionError) Error() string { return e.msg }

func decryptionErrorf(format string, args ...interface{}) error {
	return &DecryptionError{msg: fmt.Sprintf(format, args...)}
}

// EmptyInputError reports an aggregation round with zero ciphertexts.
// No identity ciphertext is synthesized: a zero average over nobody is
// meaningless and must not look like a result.
type EmptyInputError struct {
	msg string
}

func (e *EmptyInputError) Error() string { return e.msg }

func emptyInputErrorf(format string, args ...interface{}) error {
	return &EmptyInputError{msg: fmt.Sprintf(format, args...)}
}
