package types

// Event captures a structured state change emitted by the engines. Attributes
// are flat strings so downstream consumers (gateway streams, audit indexer)
// can persist them without schema coupling.
type Event struct {
	Type       string
	Attributes map[string]string
}
