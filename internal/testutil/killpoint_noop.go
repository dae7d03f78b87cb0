//go:build !crashtest

// Package testutil provides test utilities for stress testing and verification.
//
// This file provides no-op implementations of kill point functions for
// production builds. When built without the "crashtest" tag, all kill point
// calls are effectively eliminated by the compiler.
package testutil

// KillPointEnvVar is the environment variable used to set the kill point target.
// In production builds, this is defined but ignored.
const KillPointEnvVar = "LITEFS_KILL_POINT"

// SetKillPoint is a no-op in production builds.
func SetKillPoint(_ string) {}

// ClearKillPoint is a no-op in production builds.
func ClearKillPoint() {}

// ArmKillPoint is a no-op in production builds.
func ArmKillPoint() {}

// DisarmKillPoint is a no-op in production builds.
func DisarmKillPoint() {}

// IsKillPointArmed always returns false in production builds.
func IsKillPointArmed() bool { return false }

// GetKillPointTarget always returns empty string in production builds.
func GetKillPointTarget() string { return "" }

// GetKillPointHitCount always returns 0 in production builds.
func GetKillPointHitCount(_ string) int64 { return 0 }

// ResetKillPointCounts is a no-op in production builds.
func ResetKillPointCounts() {}

// MaybeKill is a no-op in production builds.
// The compiler should inline and eliminate this entirely.
func MaybeKill(_ string) {}

// Kill point name constants - defined for API compatibility even in prod builds.
const (
	// Commit kill points: writing a compacted commit into a metadata block.
	KPCommitWrite0 = "Commit.Write:0"
	KPCommitWrite1 = "Commit.Write:1"

	// Metadata-pair kill points: the copy-on-write swap between A and B.
	KPPairWriteA0 = "Pair.WriteA:0"
	KPPairWriteA1 = "Pair.WriteA:1"
	KPPairWriteB0 = "Pair.WriteB:0"
	KPPairWriteB1 = "Pair.WriteB:1"

	// Split kill points: allocating and initializing a new tail pair.
	KPSplitAllocTail0 = "Split.AllocTail:0"
	KPSplitInitTail0  = "Split.InitTail:0"
	KPSplitWriteHead0 = "Split.WriteHead:0"

	// Allocator kill points.
	KPAllocRefill0 = "Alloc.Refill:0"

	// CTZ file-write kill points.
	KPCTZWriteBlock0 = "CTZ.WriteBlock:0"

	// Directory sync kill points
	KPDirSync0 = "Dir.Sync:0"
	KPDirSync1 = "Dir.Sync:1"
)
