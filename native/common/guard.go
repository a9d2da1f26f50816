package common

import (
	"errors"
	"sync/atomic"
)

var (
	ErrModulePaused = errors.New("module paused")
	// ErrReentrantCall is returned when a mutating call is made while another
	// mutating call on the same engine is still in progress.
	ErrReentrantCall = errors.New("reentrant call")
)

// Module names understood by the pause guard.
const (
	ModuleReputation = "reputation"
	ModuleLending    = "lending"
	ModuleCredential = "credential"
	ModuleToken      = "token"
)

// Modules lists every module that can be paused.
var Modules = []string{ModuleReputation, ModuleLending, ModuleCredential, ModuleToken}

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard admits one in-flight call at a time.
type ReentrancyGuard struct {
	busy atomic.Bool
}

// Enter claims the guard. The returned release function must be called
// exactly once when the call completes.
func (g *ReentrancyGuard) Enter() (func(), error) {
	if !g.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { g.busy.Store(false) }, nil
}

// Active reports whether a call currently holds the guard.
func (g *ReentrancyGuard) Active() bool { return g.busy.Load() }
