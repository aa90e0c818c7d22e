package core

import "fmt"

// NormalizationError reports an upstream payload that could not be reduced
// to a TradeRecord. The offending event is dropped and the pipeline keeps
// running.
type NormalizationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: field %q %s", e.Field, e.Reason)
}
