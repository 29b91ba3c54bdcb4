// Package domain contains pure, dependency-free domain models and types
// for the procurement decision engine.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"time"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
// This function is provided for creating keys outside of the domain package.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string form.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys shared by the pipeline units. Each key is
// strongly typed to ensure type safety at compile time.
var (
	// KeyRequest stores the validated buyer request.
	KeyRequest = Key[BuyerRequest]{"request"}

	// KeyQueries stores the search queries derived from the request query.
	KeyQueries = Key[[]string]{"queries"}

	// KeyQueryAnalysis stores the advisor's analysis of the request query.
	KeyQueryAnalysis = Key[*QueryAnalysis]{"query_analysis"}

	// KeyOffers stores the deduplicated offers returned by retrieval.
	KeyOffers = Key[[]Offer]{"offers"}

	// KeyCandidates stores the working candidates. After the scoring unit
	// runs they are ranked best first.
	KeyCandidates = Key[[]*Candidate]{"candidates"}

	// KeyEvidenceFailures counts candidates whose evidence lookup failed
	// and fell back to zero.
	KeyEvidenceFailures = Key[int]{"evidence_failures"}

	// KeyRulesFired stores the number of production rules evaluated.
	KeyRulesFired = Key[int]{"rules.fired"}

	// KeyRuleLog stores the rule engine execution log.
	KeyRuleLog = Key[[]RuleLogEntry]{"rules.log"}

	// KeyStatistics stores the scoring statistics of the ranked batch.
	KeyStatistics = Key[ScoreStatistics]{"scoring.statistics"}

	// KeyShortlist stores the top-k candidates.
	KeyShortlist = Key[[]*Candidate]{"shortlist"}

	// KeySelected stores the recommended candidate.
	KeySelected = Key[*Candidate]{"selected"}

	// KeyAlternatives stores the advisor's alternatives suggestion.
	KeyAlternatives = Key[string]{"alternatives"}

	// Execution context keys for tracking metadata across a run.

	// KeyPipelineID identifies the pipeline definition being executed.
	KeyPipelineID = Key[string]{"execution.pipeline_id"}

	// KeyExecutionID stores a unique identifier for this specific execution
	// instance, useful for tracing and correlation.
	KeyExecutionID = Key[string]{"execution.execution_id"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	// time.Time is immutable and can be returned directly.
	if val, ok := value.(time.Time); ok {
		return val
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			setCopy(newSlice.Index(i), v.Index(i).Interface())
		}
		return newSlice.Interface()

	case reflect.Map:
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedKey := deepCopyValue(key.Interface())
			copiedValue := reflect.New(v.Type().Elem()).Elem()
			setCopy(copiedValue, v.MapIndex(key).Interface())
			newMap.SetMapIndex(reflect.ValueOf(copiedKey), copiedValue)
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		setCopy(newPtr.Elem(), v.Elem().Interface())
		return newPtr.Interface()

	case reflect.Struct:
		// This performs a shallow copy for unexported fields but deep copies
		// exported fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				setCopy(newStruct.Field(i), v.Field(i).Interface())
			}
		}
		return newStruct.Interface()

	default:
		// Primitive types are returned as-is since they are copied by value.
		return value
	}
}

// setCopy stores a deep copy of src in dst. A nil src leaves dst at its
// zero value.
func setCopy(dst reflect.Value, src any) {
	if c := deepCopyValue(src); c != nil {
		dst.Set(reflect.ValueOf(c))
	}
}

// State represents an immutable collection of decision data that flows
// through the pipeline. It uses copy-on-write semantics to ensure
// thread-safety and prevent unintended mutations. State is the primary
// data structure for passing information between Units.
type State struct {
	// data holds the key-value pairs that make up the state.
	// It is unexported to maintain immutability guarantees.
	data map[string]any
}

// NewState creates a new empty State.
// The returned State is ready to use and can be safely shared across
// goroutines.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	req, ok := Get(state, KeyRequest)
//	if !ok {
//	    // handle missing value
//	}
//	// req is typed as BuyerRequest, no type assertion needed
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a method version of Get that uses a string key.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With creates a new State with the specified key-value pair added or
// updated. It implements copy-on-write semantics, returning a new State
// instance while leaving the original unchanged. This function is the
// primary way to add or update data in a State.
//
// Example:
//
//	newState := With(state, KeyQueries, []string{"taq polymerase"})
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithRaw is a method version of With that uses a string key and allows
// chaining. For type safety, use the generic With function instead.
func (s State) WithRaw(keyName string, value any) State {
	newData := maps.Clone(s.data)
	newData[keyName] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple creates a new State with multiple key-value pairs added
// or updated. It is more efficient than chaining multiple With calls as
// it performs a single clone operation. The updates map uses string keys
// for flexibility when updating multiple values at once.
//
// Example:
//
//	updates := map[string]any{
//	    KeyRulesFired.name: 10,
//	    KeyRuleLog.name:    log,
//	}
//	newState := state.WithMultiple(updates)
func (s State) WithMultiple(updates map[string]any) State {
	newData := maps.Clone(s.data)
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// Keys returns all keys present in the State.
// The returned slice can be used to iterate over all stored values and
// is safe to modify without affecting the original State.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

// ExecutionContext contains metadata about the current run that flows
// through the State for middleware and observability.
type ExecutionContext struct {
	// PipelineID identifies the pipeline definition being executed.
	PipelineID string

	// ExecutionID is a unique identifier for this specific execution instance.
	ExecutionID string
}

// WithExecutionContext returns a State carrying the execution metadata.
func (s State) WithExecutionContext(ctx ExecutionContext) State {
	return s.WithMultiple(map[string]any{
		KeyPipelineID.name:  ctx.PipelineID,
		KeyExecutionID.name: ctx.ExecutionID,
	})
}

// GetExecutionContext extracts execution context metadata from the State.
// It reports false when either field is missing.
func (s State) GetExecutionContext() (ExecutionContext, bool) {
	pipelineID, ok1 := Get(s, KeyPipelineID)
	executionID, ok2 := Get(s, KeyExecutionID)
	if !ok1 || !ok2 {
		return ExecutionContext{}, false
	}
	return ExecutionContext{PipelineID: pipelineID, ExecutionID: executionID}, true
}
