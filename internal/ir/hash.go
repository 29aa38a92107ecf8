package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainSystem   = "dspec/system/v1"
	DomainSlice    = "dspec/slice/v1"
	DomainStep     = "dspec/step/v1"
	DomainArtifact = "dspec/artifact/v1"
	DomainGenCache = "dspec/gencache/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents domain/data
// boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SystemHash computes the content-addressed hash of a design system.
// The system must already be normalized; the hash is stable across process
// restarts and input document orderings.
func SystemHash(ds *DesignSystem) (string, error) {
	canonical, err := MarshalCanonical(ds.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("SystemHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSystem, canonical), nil
}

// InvalidationKey combines a step's IR-slice hash and configuration hash
// into the key the provenance tracker uses to decide whether regeneration
// is needed.
func InvalidationKey(sliceHash, configHash string) string {
	obj := Object{
		"slice_hash":  String(sliceHash),
		"config_hash": String(configHash),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Object of two strings cannot fail canonical marshaling.
		panic(err)
	}
	return hashWithDomain(DomainStep, canonical)
}

// ConfigHash computes the hash of a step's configuration (template or
// directive identity plus parameters). Keys and values must be strings.
func ConfigHash(fields map[string]string) string {
	obj := make(Object, len(fields))
	for k, v := range fields {
		obj[k] = String(v)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainStep, canonical)
}

// ArtifactHash computes the content hash of a generated artifact.
func ArtifactHash(content []byte) string {
	return hashWithDomain(DomainArtifact, content)
}

// GenCacheKey computes the cache key for a delegated generation response.
// The model identifier is deliberately part of the key: replaying a cached
// response from a different model would silently change outputs.
func GenCacheKey(sliceHash, directiveHash, model string) string {
	obj := Object{
		"slice_hash":     String(sliceHash),
		"directive_hash": String(directiveHash),
		"model":          String(model),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		panic(err)
	}
	return hashWithDomain(DomainGenCache, canonical)
}
