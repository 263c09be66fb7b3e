package main

import "encoding/json"

// mustJSON marshals v for an audit event's params; the inputs here are
// always small literal maps built by this package, so a marshal error
// would be a programming bug, not a runtime condition to handle.
func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
