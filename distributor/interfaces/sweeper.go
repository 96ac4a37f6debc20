package interfaces

import "context"

// RecoverySweeper periodically promotes eligible Offline analyzers back
// to Online after their cooldown elapses.
type RecoverySweeper interface {
	// Run blocks, ticking at the configured interval, until ctx is
	// canceled. Intended to be launched in its own goroutine.
	Run(ctx context.Context)
}
