package weightd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// ParseGenesisHash accepts a 32-byte hash as 64 hex characters or as base64.
// Hex is tried first when the length matches.
func ParseGenesisHash(s string) ([GenesisHashSize]byte, error) {
	var h [GenesisHashSize]byte

	if len(s) == 2*GenesisHashSize {
		if b, err := hex.DecodeString(s); err == nil {
			copy(h[:], b)
			return h, nil
		}
	}

	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) == GenesisHashSize {
		copy(h[:], b)
		return h, nil
	}

	return h, fmt.Errorf("invalid genesis hash: expected 32-byte hex (64 chars) or base64 string, got %q", s)
}
