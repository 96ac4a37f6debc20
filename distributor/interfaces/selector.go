package interfaces

// NoTarget is returned by Selector.Select when no analyzer is Online.
const NoTarget = ""

// Selector chooses the single best analyzer for a packet carrying m
// messages. It is pure with respect to observable state: it reads the
// registry snapshot and the current total but never mutates counters.
type Selector interface {
	// Select returns the chosen analyzer id, or NoTarget if no analyzer
	// in the registry is Online.
	Select(registry Registry, totalMessagesProcessed int64, m int) string
}
