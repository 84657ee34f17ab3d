package model

// DegradedReason explains why a Result carries fallback data.
type DegradedReason string

const (
	DegradedNone           DegradedReason = ""
	DegradedLLMUnavailable DegradedReason = "llm_unavailable"
	DegradedLLMMalformed   DegradedReason = "llm_malformed"
)

// Result separates real data from fallback data produced while a backend was unavailable.
type Result[T any] struct {
	Data     T
	Degraded DegradedReason
}

func Real[T any](data T) Result[T] { return Result[T]{Data: data} }

func Fallback[T any](data T, reason DegradedReason) Result[T] {
	return Result[T]{Data: data, Degraded: reason}
}

func (r Result[T]) IsDegraded() bool { return r.Degraded != DegradedNone }
