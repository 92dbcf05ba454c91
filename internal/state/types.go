// Package state holds the decoded health of the three monitored subsystems.
// It has no dependencies on GPIO, serial or time: the decoder writes it and
// the LED animators read it.
package state

import "fmt"

// Subsystem names one of the monitored subsystems.
type Subsystem string

const (
	SubsystemNode    Subsystem = "node"
	SubsystemNetwork Subsystem = "network"
	SubsystemStorage Subsystem = "storage"
)

// Subsystems lists every subsystem in display order.
var Subsystems = []Subsystem{SubsystemNode, SubsystemNetwork, SubsystemStorage}

// Node is the state of the node subsystem.
type Node uint8

const (
	NodeNormal Node = iota
	NodeSync
	NodeError
)

func (n Node) String() string {
	switch n {
	case NodeNormal:
		return "NORMAL"
	case NodeSync:
		return "SYNC"
	case NodeError:
		return "ERROR"
	}
	return fmt.Sprintf("Node(%d)", uint8(n))
}

// Storage is the state of the storage subsystem.
type Storage uint8

const (
	StorageNormal Storage = iota
	StorageRecovering
	StorageError
)

func (s Storage) String() string {
	switch s {
	case StorageNormal:
		return "NORMAL"
	case StorageRecovering:
		return "RECOVERING"
	case StorageError:
		return "ERROR"
	}
	return fmt.Sprintf("Storage(%d)", uint8(s))
}

// NetworkMode is the variant of the network subsystem state.
type NetworkMode uint8

const (
	NetworkNormal NetworkMode = iota
	NetworkRecovering
	NetworkError
)

func (m NetworkMode) String() string {
	switch m {
	case NetworkNormal:
		return "NORMAL"
	case NetworkRecovering:
		return "RECOVERING"
	case NetworkError:
		return "ERROR"
	}
	return fmt.Sprintf("NetworkMode(%d)", uint8(m))
}

// Port bounds for Network.Port while in NetworkError.
const (
	MinPort = 1
	MaxPort = 4
)

// Network is the state of the network subsystem. Port identifies the failed
// port (MinPort..MaxPort) and is only meaningful when Mode is NetworkError.
type Network struct {
	Mode NetworkMode
	Port int
}

// NetworkErrorOn returns the error state for the given port.
func NetworkErrorOn(port int) Network {
	return Network{Mode: NetworkError, Port: port}
}

// ValidPort reports whether Port is in MinPort..MaxPort.
func (n Network) ValidPort() bool {
	return n.Port >= MinPort && n.Port <= MaxPort
}

func (n Network) String() string {
	if n.Mode == NetworkError {
		return fmt.Sprintf("ERROR(port=%d)", n.Port)
	}
	return n.Mode.String()
}
