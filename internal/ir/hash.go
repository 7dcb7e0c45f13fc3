package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix leaves
// room for a future algorithm change.
const (
	DomainSource   = "stigc/source/v1"
	DomainManifest = "stigc/manifest/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SourceHash identifies emitted source text.
func SourceHash(src []byte) string {
	return hashWithDomain(DomainSource, src)
}

// ManifestHash identifies the exported interface of a package.
func ManifestHash(m *Manifest) (string, error) {
	canonical, err := MarshalCanonical(m.Value())
	if err != nil {
		return "", fmt.Errorf("ManifestHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainManifest, canonical), nil
}
