// Package chanreg implements the per-node channel registry (spec.md §4.4):
// a table of ChannelRecords mutated only by engine methods that already hold
// logical ownership of the record, modeled on channeldb's OpenChannel store
// but kept in memory since the data model names no persistence requirement.
package chanreg

import (
	"math/big"
	"sync"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// Record is the mutable, per-node bookkeeping for one channel (spec.md §3).
type Record struct {
	ID chanaddr.ChannelID

	PeerAddr chanaddr.Address
	PeerNet  chanaddr.NodeID

	TotalDeposit *big.Int

	// IsPartyOne reports whether this node owns balance1.
	IsPartyOne bool

	// LocalBalance1/2 is this node's optimistic view, updated on Send
	// even before the peer's ack arrives.
	LocalBalance1 *big.Int
	LocalBalance2 *big.Int
	LocalSerial   uint64

	// LastCountersigned is the most recent state signed BY THE PEER that
	// this node has accepted. It is the only state safe to close with.
	// nil means no transfer has completed yet.
	LastCountersigned *statemsg.State

	// Closed is this node's local belief that the channel has entered
	// the on-chain closure flow.
	Closed bool
}

// clone returns a deep copy of r so registry internals never leak through a
// caller-held pointer (spec.md §3 "Ownership").
func (r *Record) clone() *Record {
	cp := *r
	cp.TotalDeposit = new(big.Int).Set(r.TotalDeposit)
	cp.LocalBalance1 = new(big.Int).Set(r.LocalBalance1)
	cp.LocalBalance2 = new(big.Int).Set(r.LocalBalance2)
	if r.LastCountersigned != nil {
		s := *r.LastCountersigned
		s.Balance1 = new(big.Int).Set(r.LastCountersigned.Balance1)
		s.Balance2 = new(big.Int).Set(r.LastCountersigned.Balance2)
		cp.LastCountersigned = &s
	}
	return &cp
}

// OwnBalance returns the record's own-balance field: LocalBalance1 if
// IsPartyOne, else LocalBalance2 (spec.md §8 property 4).
func (r *Record) OwnBalance() *big.Int {
	if r.IsPartyOne {
		return r.LocalBalance1
	}
	return r.LocalBalance2
}

// Registry is a node's table of ChannelID -> *Record. All exported methods
// are safe for concurrent use; per spec.md §5 a production port must keep
// per-channel operations linearizable, so every mutation is taken under the
// registry-wide lock. Cross-channel operations may still run concurrently
// with respect to each other's engine-level ledger calls, which never touch
// the registry while they block.
type Registry struct {
	mu      sync.Mutex
	records map[chanaddr.ChannelID]*Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[chanaddr.ChannelID]*Record),
	}
}

// Has reports whether id is known.
func (r *Registry) Has(id chanaddr.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[id]
	return ok
}

// Insert adds rec to the registry, keyed by rec.ID. It is the caller's
// responsibility to ensure rec isn't already present; engine handlers check
// Has first so this never silently clobbers state.
func (r *Registry) Insert(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
}

// Get returns a defensive copy of the record for id, or nil if unknown.
func (r *Registry) Get(id chanaddr.ChannelID) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	return rec.clone()
}

// Mutate looks up id and, if present, runs fn against the live record under
// the registry lock, then returns a defensive copy of the post-mutation
// state. fn must not retain rec beyond the call. This is the only path by
// which engine handlers change a record in place.
func (r *Registry) Mutate(id chanaddr.ChannelID, fn func(rec *Record)) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	fn(rec)
	return rec.clone()
}

// Delete removes id from the registry.
func (r *Registry) Delete(id chanaddr.ChannelID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
}

// ChannelIDs returns an independent copy of the known channel ids (spec.md
// §3 "Ownership", §8 property 6): mutating the returned slice never affects
// the registry or any later call.
func (r *Registry) ChannelIDs() []chanaddr.ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]chanaddr.ChannelID, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	return ids
}
