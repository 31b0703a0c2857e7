// Package sandboxspec defines the value types shared between the
// SandboxCommandBuilder and its callers: resource ceilings and the
// restore/test phase identifier, so neither side needs to import the
// other's package to agree on them.
package sandboxspec

// ResourceLimits are the hard ceilings enforced by the container runtime
// for a single phase invocation.
type ResourceLimits struct {
	CPUs      string // e.g. "1"
	MemoryMB  int64  // e.g. 512; swap is pinned equal to this
	PIDsLimit int64  // e.g. 128
}

// Phase identifies which of the two sandboxed invocations this is.
type Phase string

const (
	PhaseRestore Phase = "restore"
	PhaseTest    Phase = "test"
)
