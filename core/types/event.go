package types

// Event is the wire form of a pool domain event: a dotted type name (for
// example "lending.deposit") plus flat string attributes, ready for the audit
// sink or the structured log.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
