package protocol

import "github.com/sweeney/status-led/internal/state"

// Segments is the decoded content of a control byte. A field whose raw value
// is not defined by the protocol has its OK flag cleared and must be left
// untouched by the receiver.
type Segments struct {
	Node      state.Node
	NodeOK    bool
	Storage   state.Storage
	StorageOK bool
	Network   state.Network
	NetworkOK bool

	// Raw segment values, masked but not shifted.
	RawNode    byte
	RawStorage byte
	RawNetwork byte
}

// Decode splits control into its three segments.
func Decode(control byte) Segments {
	s := Segments{
		RawNode:    control & NodeMask,
		RawStorage: control & StorageMask,
		RawNetwork: control & NetworkMask,
	}
	s.Node, s.NodeOK = nodeSegment(s.RawNode)
	s.Storage, s.StorageOK = storageSegment(s.RawStorage)
	s.Network, s.NetworkOK = networkSegment(s.RawNetwork)
	return s
}

// Sink receives decoded subsystem states. Each setter reports whether the
// stored value changed. *state.Store implements Sink.
type Sink interface {
	SetNode(state.Node) bool
	SetStorage(state.Storage) bool
	SetNetwork(state.Network) bool
}

// Apply writes every defined segment to sink and returns the subsystems whose
// value changed. Undefined segments are skipped; the others still apply.
func (s Segments) Apply(sink Sink) []state.Subsystem {
	var changed []state.Subsystem
	if s.NodeOK && sink.SetNode(s.Node) {
		changed = append(changed, state.SubsystemNode)
	}
	if s.NetworkOK && sink.SetNetwork(s.Network) {
		changed = append(changed, state.SubsystemNetwork)
	}
	if s.StorageOK && sink.SetStorage(s.Storage) {
		changed = append(changed, state.SubsystemStorage)
	}
	return changed
}

func nodeSegment(raw byte) (state.Node, bool) {
	switch raw {
	case 0x00:
		return state.NodeNormal, true
	case 0x40:
		return state.NodeSync, true
	case 0xC0:
		return state.NodeError, true
	}
	return 0, false
}

func storageSegment(raw byte) (state.Storage, bool) {
	switch raw {
	case 0x00:
		return state.StorageNormal, true
	case 0x10:
		return state.StorageRecovering, true
	case 0x30:
		return state.StorageError, true
	}
	return 0, false
}

// networkSegment maps the one-hot error bits to ports 1-4; all bits set means
// recovering.
func networkSegment(raw byte) (state.Network, bool) {
	switch raw {
	case 0x00:
		return state.Network{Mode: state.NetworkNormal}, true
	case 0x0F:
		return state.Network{Mode: state.NetworkRecovering}, true
	case 0x01:
		return state.NetworkErrorOn(1), true
	case 0x02:
		return state.NetworkErrorOn(2), true
	case 0x04:
		return state.NetworkErrorOn(3), true
	case 0x08:
		return state.NetworkErrorOn(4), true
	}
	return state.Network{}, false
}
