// Package chanaddr defines the identifier types shared across the state
// channel engine: on-ledger Address, the ChannelID (the arbiter contract's
// own address), and the opaque transport-level NodeID.
package chanaddr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/sha3"
)

// AddressLength is the size in bytes of an on-ledger account identifier.
const AddressLength = 20

// Address is a 20-byte on-ledger account identifier.
type Address [AddressLength]byte

// ChannelID identifies a channel; it is equal to the arbiter contract's
// on-ledger address (spec.md §3).
type ChannelID = Address

// NodeID is an opaque network address used by the transport to route
// messages between nodes. The engine never trusts it for authentication;
// only the signed state message proves authenticity (spec.md §4.3).
type NodeID string

// BytesToAddress truncates/right-aligns b into an Address, mirroring the
// common "left-pad with zero, keep the low-order bytes" convention used by
// fixed-width account identifiers.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) >= AddressLength {
		copy(a[:], b[len(b)-AddressLength:])
	} else {
		copy(a[AddressLength-len(b):], b)
	}
	return a
}

// Keccak256 is the canonical hash function used throughout the codec: the
// signing preimage, the address-from-pubkey derivation, and the mixed-case
// checksum in String.
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}

// FromPubKey derives the 20-byte address from an uncompressed secp256k1
// public key: the low 20 bytes of keccak256(X || Y), the one address
// derivation used everywhere a caller holds a *btcec.PublicKey.
func FromPubKey(pub *btcec.PublicKey) Address {
	raw := pub.SerializeUncompressed()
	// Drop the 0x04 prefix byte; address derivation hashes the raw X||Y
	// coordinate pair only.
	digest := Keccak256(raw[1:])
	return BytesToAddress(digest[12:])
}

// FromPrivKey derives the address of priv's public key.
func FromPrivKey(priv *btcec.PrivateKey) Address {
	return FromPubKey(priv.PubKey())
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a's contents as a fresh byte slice.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLength)
	copy(b, a[:])
	return b
}

// String returns the checksummed hex encoding of a, following the same
// mixed-case checksum convention as the ledger it was derived from: a hex
// digit is upper-cased iff the corresponding nibble of keccak256(lowercase
// hex) is >= 8.
func (a Address) String() string {
	lower := hex.EncodeToString(a[:])
	digest := Keccak256([]byte(lower))

	var sb strings.Builder
	sb.WriteString("0x")
	for i, c := range lower {
		if c >= 'a' && c <= 'f' {
			nibble := digest[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x8 != 0 {
				sb.WriteRune(c - ('a' - 'A'))
				continue
			}
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

// ParseAddress decodes a checksummed or plain hex address string.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != AddressLength*2 {
		return Address{}, fmt.Errorf("chanaddr: invalid address length %d", len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Address{}, fmt.Errorf("chanaddr: %w", err)
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}
