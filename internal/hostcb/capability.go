// Package hostcb implements the callbacks a plugin makes into its host.
//
// Every capability has an entry in a table that states whether the sink
// implements it, answers with a documented default, or refuses it. The table is
// enumerable so the supported plugin-host interactions can be inspected and
// tested rather than discovered at runtime.
package hostcb

import (
	"errors"
	"fmt"
)

// ErrUnimplemented is returned when a plugin calls a capability the sink refuses.
var ErrUnimplemented = errors.New("host capability not implemented")

// Capability is one host function a plugin may call.
type Capability int

const (
	Automate Capability = iota
	PluginID
	Idle
	Info
	ProcessEvents
	TimeInfo
	BlockSize
	UpdateDisplay
)

var capabilityNames = [...]string{
	Automate:      "automate",
	PluginID:      "getPluginId",
	Idle:          "idle",
	Info:          "getInfo",
	ProcessEvents: "processEvents",
	TimeInfo:      "getTimeInfo",
	BlockSize:     "getBlockSize",
	UpdateDisplay: "updateDisplay",
}

func (c Capability) String() string {
	if c >= 0 && int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

// Capabilities lists every capability in table order.
func Capabilities() []Capability {
	out := make([]Capability, len(capabilityNames))
	for i := range out {
		out[i] = Capability(i)
	}
	return out
}

// Behavior describes how the sink answers a capability.
type Behavior int

const (
	// Implemented capabilities do real work.
	Implemented Behavior = iota
	// Default capabilities answer with a neutral, documented value.
	Default
	// Refused capabilities return ErrUnimplemented.
	Refused
)

func (b Behavior) String() string {
	switch b {
	case Implemented:
		return "implemented"
	case Default:
		return "default"
	case Refused:
		return "refused"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// Entry is one row of the capability table.
type Entry struct {
	Capability  Capability
	Behavior    Behavior
	Description string
}

// standardTable is used unless the sink is strict.
var standardTable = [...]Entry{
	{Automate, Implemented, "logs and records the latest value per parameter index"},
	{PluginID, Default, "unique id of the module being hosted, 0 before it is known"},
	{Idle, Default, "no-op"},
	{Info, Implemented, "version 1, vendor Mixlab, product Mixlab"},
	{ProcessEvents, Default, "events are counted and discarded"},
	{TimeInfo, Default, "sample position from the render clock, 120 BPM 4/4, playing"},
	{BlockSize, Default, "configured block size"},
	{UpdateDisplay, Default, "no-op"},
}

// strictTable refuses everything the reference plugin does not need.
var strictTable = [...]Entry{
	{Automate, Implemented, "logs and records the latest value per parameter index"},
	{PluginID, Refused, "not supported"},
	{Idle, Refused, "not supported"},
	{Info, Implemented, "version 1, vendor Mixlab, product Mixlab"},
	{ProcessEvents, Refused, "not supported"},
	{TimeInfo, Refused, "not supported"},
	{BlockSize, Refused, "not supported"},
	{UpdateDisplay, Refused, "not supported"},
}
