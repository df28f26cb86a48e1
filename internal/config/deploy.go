package config

import "fmt"

// DeployMode is the operator's declared hosting model.
type DeployMode string

// Supported deploy modes.
const (
	// ModeAuto defers to the serverless platform flag.
	ModeAuto DeployMode = "auto"
	// ModeServer always binds a listener.
	ModeServer DeployMode = "server"
	// ModeServerless never binds a listener; a host runtime invokes the handler.
	ModeServerless DeployMode = "serverless"
)

// Valid reports whether m is a known mode.
func (m DeployMode) Valid() bool {
	switch m {
	case ModeAuto, ModeServer, ModeServerless:
		return true
	}
	return false
}

// BootState is the resolved startup behaviour of the process.
type BootState int

// Boot states.
const (
	// StateListening binds a TCP listener after an eager database connect.
	StateListening BootState = iota
	// StatePassive performs no listen call.
	StatePassive
)

func (s BootState) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StatePassive:
		return "passive"
	}
	return fmt.Sprintf("BootState(%d)", int(s))
}

// Resolve maps the deploy settings to a boot state.
//
// The process is Passive when the mode is serverless, or when the mode is auto
// and the serverless platform flag is set. A production environment alone does
// not suppress listening: long-lived containers run with NODE_ENV=production.
func (d DeployConfig) Resolve() (BootState, error) {
	switch d.Mode {
	case ModeServer:
		return StateListening, nil
	case ModeServerless:
		return StatePassive, nil
	case ModeAuto, "":
		if d.Serverless {
			return StatePassive, nil
		}
		return StateListening, nil
	}
	return StateListening, fmt.Errorf("unknown deploy mode %q", d.Mode)
}
