package commands

import (
	"encoding/json"
	"io"

	"github.com/wonny/vnmarket/internal/contracts"
	"github.com/wonny/vnmarket/internal/frame"
)

// errorPayload is the only document written to stdout on failure
type errorPayload struct {
	Error string `json:"error"`
}

// writeJSON writes v as one JSON document followed by a newline
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeError(w io.Writer, err error) {
	_ = writeJSON(w, errorPayload{Error: err.Error()})
}

// coerceRecord applies rule to every field before output
func coerceRecord(r contracts.Record, rule frame.Rule) contracts.Record {
	out := make(contracts.Record, len(r))
	for k, v := range r {
		out[k] = frame.Coerce(v, rule)
	}
	return out
}

// coerceRecords applies coerceRecord to every row; never returns nil
func coerceRecords(rs []contracts.Record, rule frame.Rule) []contracts.Record {
	out := make([]contracts.Record, len(rs))
	for i, r := range rs {
		out[i] = coerceRecord(r, rule)
	}
	return out
}
