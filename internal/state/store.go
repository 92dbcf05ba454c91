package state

import "sync/atomic"

// Store holds the latest state of each subsystem in its own atomic cell.
// One writer and any number of readers may use it concurrently; a reader of
// one subsystem never contends with a writer of another.
//
// The zero value is ready to use and reports every subsystem as Normal.
type Store struct {
	node    atomic.Uint32
	storage atomic.Uint32
	// network packs Mode in bits 8-15 and Port in bits 0-7 so a reader never
	// observes an error mode paired with a stale port.
	network atomic.Uint32
}

// NewStore returns a Store with every subsystem Normal.
func NewStore() *Store {
	return &Store{}
}

// SetNode stores v and reports whether it differs from the previous value.
func (s *Store) SetNode(v Node) bool {
	return Node(s.node.Swap(uint32(v))) != v
}

// Node returns the current node state.
func (s *Store) Node() Node {
	return Node(s.node.Load())
}

// SetStorage stores v and reports whether it differs from the previous value.
func (s *Store) SetStorage(v Storage) bool {
	return Storage(s.storage.Swap(uint32(v))) != v
}

// Storage returns the current storage state.
func (s *Store) Storage() Storage {
	return Storage(s.storage.Load())
}

// SetNetwork stores v and reports whether it differs from the previous value.
func (s *Store) SetNetwork(v Network) bool {
	packed := packNetwork(v)
	return s.network.Swap(packed) != packed
}

// Network returns the current network state.
func (s *Store) Network() Network {
	return unpackNetwork(s.network.Load())
}

// Snapshot is a point-in-time copy of all three subsystems. The fields are
// read independently, so it is not a consistent cut across subsystems.
type Snapshot struct {
	Node    Node
	Network Network
	Storage Storage
}

// Snapshot returns the current state of every subsystem.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Node:    s.Node(),
		Network: s.Network(),
		Storage: s.Storage(),
	}
}

func packNetwork(v Network) uint32 {
	return uint32(v.Mode)<<8 | uint32(uint8(v.Port))
}

func unpackNetwork(p uint32) Network {
	return Network{
		Mode: NetworkMode(p >> 8),
		Port: int(uint8(p)),
	}
}
