package inventory

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// refLen is the number of hex characters kept from the digest.
const refLen = 16

// Redactor derives stable pseudonyms for counterparty names.
type Redactor struct {
	key []byte
}

// NewRedactor builds a keyed redactor. An empty key yields unkeyed digests.
func NewRedactor(key []byte) (*Redactor, error) {
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("inventory: redaction key longer than %d bytes", blake2b.Size)
	}
	cp := make([]byte, len(key))
	copy(cp, key)
	return &Redactor{key: cp}, nil
}

// Ref returns the pseudonym for name, or "" for a blank name.
func (r *Redactor) Ref(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var key []byte
	if r != nil {
		key = r.key
	}
	h, err := blake2b.New256(key)
	if err != nil {
		h, _ = blake2b.New256(nil)
	}
	_, _ = h.Write([]byte(strings.ToLower(name)))
	return hex.EncodeToString(h.Sum(nil))[:refLen]
}
