//go:build crashtest

// Package testutil provides test utilities for stress testing and verification.
//
// Kill points provide a mechanism to deterministically exit a process at specific
// code locations for whitebox crash testing. Unlike sync points (which pause
// execution), kill points terminate the process to simulate crashes.
//
// Usage:
//
//	// In production code (compiled out without build tag):
//	testutil.MaybeKill("Commit.Write:1")
//
//	// In test harness (set via env var or API):
//	testutil.SetKillPoint("Commit.Write:1")
//
// Build with kill points enabled:
//
//	go build -tags crashtest ./...
package testutil

import (
	"os"
	"sync"
	"sync/atomic"
)

// killPointState holds the global kill point configuration.
type killPointState struct {
	// target is the name of the kill point that should trigger exit.
	// Empty string means no kill point is set.
	target atomic.Value // stores string

	// armed controls whether kill points are active.
	// This allows temporarily disabling kill points without clearing the target.
	armed atomic.Bool

	// hitCount tracks how many times each kill point was reached.
	// Useful for debugging and verification.
	mu        sync.RWMutex
	hitCounts map[string]int64
}

// globalKillPoint is the singleton kill point state.
var globalKillPoint = &killPointState{
	hitCounts: make(map[string]int64),
}

// KillPointEnvVar is the environment variable used to set the kill point target.
const KillPointEnvVar = "LITEFS_KILL_POINT"

func init() {
	// Check environment variable on startup
	if target := os.Getenv(KillPointEnvVar); target != "" {
		globalKillPoint.target.Store(target)
		globalKillPoint.armed.Store(true)
	}
}

// SetKillPoint sets the target kill point name.
// When MaybeKill is called with this name, the process will exit.
func SetKillPoint(name string) {
	globalKillPoint.target.Store(name)
	globalKillPoint.armed.Store(true)
}

// ClearKillPoint clears the kill point target.
func ClearKillPoint() {
	globalKillPoint.target.Store("")
	globalKillPoint.armed.Store(false)
}

// ArmKillPoint enables kill point processing.
func ArmKillPoint() {
	globalKillPoint.armed.Store(true)
}

// DisarmKillPoint disables kill point processing without clearing the target.
func DisarmKillPoint() {
	globalKillPoint.armed.Store(false)
}

// IsKillPointArmed returns whether kill points are currently armed.
func IsKillPointArmed() bool {
	return globalKillPoint.armed.Load()
}

// GetKillPointTarget returns the current kill point target.
func GetKillPointTarget() string {
	if v := globalKillPoint.target.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// GetKillPointHitCount returns how many times a kill point was reached.
func GetKillPointHitCount(name string) int64 {
	globalKillPoint.mu.RLock()
	defer globalKillPoint.mu.RUnlock()
	return globalKillPoint.hitCounts[name]
}

// ResetKillPointCounts resets all hit counts.
func ResetKillPointCounts() {
	globalKillPoint.mu.Lock()
	defer globalKillPoint.mu.Unlock()
	globalKillPoint.hitCounts = make(map[string]int64)
}

// MaybeKill checks if the named kill point matches the target and exits if so.
// This is the primary entry point for kill points in production code.
//
// If the kill point is armed and the name matches the target, the process
// exits with code 0 (clean exit, not a crash signal).
func MaybeKill(name string) {
	if !globalKillPoint.armed.Load() {
		return
	}

	// Track hit count
	globalKillPoint.mu.Lock()
	globalKillPoint.hitCounts[name]++
	globalKillPoint.mu.Unlock()

	// Check if this is the target
	target, ok := globalKillPoint.target.Load().(string)
	if !ok || target == "" {
		return
	}

	if target == name {
		// Exit cleanly to simulate a crash
		// Exit code 0 indicates intentional kill, not an error
		os.Exit(0)
	}
}

// KillPointNames defines the standard kill point names, one per commit-path
// step where a crash's effect on recovery is worth exercising directly:
// "Component.Operation:N" where N is 0 for "before" and 1 for "after".
const (
	// Commit kill points: writing a compacted commit into a metadata block.
	KPCommitWrite0 = "Commit.Write:0" // before the commit's entries are programmed
	KPCommitWrite1 = "Commit.Write:1" // after the whole commit, CRC word included, is programmed

	// Metadata-pair kill points: the copy-on-write swap between A and B.
	KPPairWriteA0 = "Pair.WriteA:0" // before writing the non-current half
	KPPairWriteA1 = "Pair.WriteA:1" // after writing the non-current half
	KPPairWriteB0 = "Pair.WriteB:0"
	KPPairWriteB1 = "Pair.WriteB:1"

	// Split kill points: allocating and initializing a new tail pair.
	KPSplitAllocTail0 = "Split.AllocTail:0" // before allocating the tail pair's blocks
	KPSplitInitTail0  = "Split.InitTail:0"  // before writing the tail pair's initial commit
	KPSplitWriteHead0 = "Split.WriteHead:0" // before writing the head pair's hard-tail commit

	// Allocator kill points.
	KPAllocRefill0 = "Alloc.Refill:0" // during the reachability scan that refills the lookahead buffer

	// CTZ file-write kill points.
	KPCTZWriteBlock0 = "CTZ.WriteBlock:0" // before writing one CTZ chain block

	// Directory-sync kill points, for adapters layering an fsync barrier on
	// top of Device.WriteBlock.
	KPDirSync0 = "Dir.Sync:0"
	KPDirSync1 = "Dir.Sync:1"
)
