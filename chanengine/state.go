package chanengine

import (
	"fmt"

	"github.com/arbiterlabs/statechannel/chanaddr"
	"github.com/arbiterlabs/statechannel/statemsg"
)

// GetCurrentChannelState returns the most recent state this node holds that
// is safe to close with: the last countersigned state, or the implicit
// serial-0 placeholder if no transfer has completed yet (spec.md §4.5.6).
func (n *Node) GetCurrentChannelState(channelID chanaddr.ChannelID) (statemsg.State, error) {
	rec := n.registry.Get(channelID)
	if rec == nil {
		return statemsg.State{}, fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}

	if rec.LastCountersigned != nil {
		return *rec.LastCountersigned, nil
	}
	return statemsg.Initial(channelID, rec.TotalDeposit), nil
}
