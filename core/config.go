package core

import "time"

// Config is the process-wide, read-only-after-Init configuration
// record. The hardcoded tunables the original left as compile-time
// constants (keepalive cadence, slow-path cadence, supervisor cadence
// and deadline) are fields here instead.
type Config struct {
	CoreMask            Mask
	Daemon              bool
	PollingTimeout      time.Duration
	UseHuge             bool
	RPCTimeout          time.Duration
	PerformanceAnalysis bool

	KeepaliveInterval  time.Duration
	ScanInterval       time.Duration
	SupervisorInterval time.Duration
	SupervisorTimeout  time.Duration
	MaxTasksPerCore    int
}

// DefaultConfig returns the values the original hardcoded.
func DefaultConfig() Config {
	return Config{
		CoreMask:           1,
		RPCTimeout:         5 * time.Second,
		KeepaliveInterval:  time.Second,
		ScanInterval:       3 * time.Second,
		SupervisorInterval: 30 * time.Second,
		SupervisorTimeout:  180 * time.Second,
		MaxTasksPerCore:    4096,
	}
}
