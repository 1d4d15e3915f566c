// Package statemsg implements the state message codec (spec.md §4.1): the
// canonical channel-state tuple, its keccak256 hash, and sign/recover/verify
// over that hash using secp256k1 recoverable ECDSA signatures. This is the
// wire format exchanged over transport.Broker and the payload submitted to
// the arbiter on close/appeal.
package statemsg

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/arbiterlabs/statechannel/chanaddr"
)

// personalPrefix is prepended to the canonical hash before signing, the way
// the underlying ledger's personal-message convention requires (spec.md §3,
// §6). Changing this breaks cross-compatibility with the arbiter contract.
const personalPrefix = "\x19Channel Signed Message:\n32"

// Signature is the recoverable ECDSA tuple over secp256k1: (v, r, s). The
// all-zero value is the sentinel "unsigned placeholder" (spec.md §3, §9).
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// IsZero reports whether sig is the unsigned placeholder.
func (sig Signature) IsZero() bool {
	return sig.V == 0 && sig.R == [32]byte{} && sig.S == [32]byte{}
}

// compact reassembles the 65-byte compact signature ecdsa.RecoverCompact
// expects: header byte, then r, then s.
func (sig Signature) compact() []byte {
	out := make([]byte, 65)
	out[0] = sig.V
	copy(out[1:33], sig.R[:])
	copy(out[33:65], sig.S[:])
	return out
}

// State is the immutable channel-state tuple of spec.md §3. Balances are
// u256 wei amounts carried as math/big.Int since no fixed-width unsigned
// integer type exists anywhere in the dependency pack.
type State struct {
	Channel  chanaddr.ChannelID
	Balance1 *big.Int
	Balance2 *big.Int
	Serial   uint64
	Sig      Signature
}

// WithSig returns a copy of s with its signature replaced; State itself
// stays immutable so callers never mutate a value another party is holding.
func (s State) WithSig(sig Signature) State {
	s.Sig = sig
	return s
}

// bigToBytes32 renders x as a 32-byte big-endian word, the same encoding
// abi_encode_packed(uint256) uses.
func bigToBytes32(x *big.Int) []byte {
	buf := make([]byte, 32)
	if x == nil {
		return buf
	}
	x.FillBytes(buf)
	return buf
}

// Hash computes the canonical hash of s: keccak256(channel || b1 || b2 ||
// serial), ignoring the signature field entirely (spec.md §3). This is the
// preimage both sign and recover operate on.
func Hash(s State) [32]byte {
	serial := new(big.Int).SetUint64(s.Serial)
	return chanaddr.Keccak256(
		s.Channel.Bytes(),
		bigToBytes32(s.Balance1),
		bigToBytes32(s.Balance2),
		bigToBytes32(serial),
	)
}

// signingDigest wraps Hash(s) in the ledger's personal-message prefix before
// it is handed to ECDSA, matching the on-chain arbiter's recovery path
// (spec.md §6).
func signingDigest(s State) [32]byte {
	h := Hash(s)
	return chanaddr.Keccak256([]byte(personalPrefix), h[:])
}

// Sign returns a copy of msg with Sig set to the secp256k1 signature of
// signingDigest(msg) under priv (spec.md §4.1).
func Sign(priv *btcec.PrivateKey, msg State) State {
	digest := signingDigest(msg)
	compact := ecdsa.SignCompact(priv, digest[:], false)

	var sig Signature
	sig.V = compact[0]
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])

	return msg.WithSig(sig)
}

// Recover returns the address that produced msg.Sig over signingDigest(msg).
// It returns an error only if the signature bytes themselves are malformed;
// a well-formed signature that simply doesn't match the expected signer is
// reported by Verify returning false, not by an error here.
func Recover(msg State) (chanaddr.Address, error) {
	if msg.Sig.IsZero() {
		return chanaddr.Address{}, fmt.Errorf("statemsg: cannot recover from unsigned placeholder")
	}

	digest := signingDigest(msg)
	pub, _, err := ecdsa.RecoverCompact(msg.Sig.compact(), digest[:])
	if err != nil {
		return chanaddr.Address{}, fmt.Errorf("statemsg: recover: %w", err)
	}

	return chanaddr.FromPubKey(pub), nil
}

// Verify reports whether msg.Sig recovers to expected. Verification is
// bit-exact over Balance1, Balance2, Serial and Channel; no malleability
// beyond what the underlying ECDSA curve already permits (spec.md §4.1).
func Verify(msg State, expected chanaddr.Address) bool {
	if msg.Sig.IsZero() {
		return false
	}
	recovered, err := Recover(msg)
	if err != nil {
		return false
	}
	return bytes.Equal(recovered[:], expected[:])
}

// Initial returns the implicit serial-0 state for a freshly opened channel:
// all of totalDeposit owned by balance1, nothing transferred, unsigned
// (spec.md §4.5.6, §9 "Initial state").
func Initial(channel chanaddr.ChannelID, totalDeposit *big.Int) State {
	return State{
		Channel:  channel,
		Balance1: new(big.Int).Set(totalDeposit),
		Balance2: big.NewInt(0),
		Serial:   0,
		Sig:      Signature{},
	}
}
