package types

import "strings"

// Event is the flattened form of an engine event kept in the journal and
// served over HTTP. Amounts are decimal strings and accounts bech32.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Module names the engine that produced the event: the "module" attribute
// when set, otherwise the first dotted segment of Type.
func (e *Event) Module() string {
	if e == nil {
		return ""
	}
	if m := e.Attributes["module"]; m != "" {
		return m
	}
	module, _, _ := strings.Cut(e.Type, ".")
	return module
}
