// Package parse turns raw LLM replies into typed values. Each reply contract
// (topic selection, tool selection, metadata, evaluator feedback) has its own
// parser so the fallbacks are explicit and testable.
package parse

import "fmt"

// ParseError describes why a reply did not satisfy its contract.
type ParseError struct {
	Contract string // topic, tool, metadata
	Reason   string
	Raw      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Contract, e.Reason)
}

func newParseError(contract, raw, format string, args ...any) *ParseError {
	return &ParseError{Contract: contract, Reason: fmt.Sprintf(format, args...), Raw: raw}
}
