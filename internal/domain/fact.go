package domain

import (
	"maps"
	"slices"
)

// Fact sources other than a rule id.
const (
	SourcePercept  = "percept"
	SourceInferred = "inferred"
)

// Fact is a named assertion in a KnowledgeBase. Facts are identified by
// Name only; chaining checks presence and ignores Value.
type Fact struct {
	Name       string  `json:"name"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`

	// Source is SourcePercept, SourceInferred, or the id of the rule whose
	// action derived the fact.
	Source string `json:"source"`
}

// NewFact returns a fact with full confidence.
func NewFact(name string, value any, source string) Fact {
	if source == "" {
		source = SourceInferred
	}
	return Fact{Name: name, Value: value, Confidence: 1.0, Source: source}
}

// KnowledgeBase holds the facts of one episode keyed by name. Asserting a
// name that is already present overwrites the previous fact.
//
// A KnowledgeBase is not safe for concurrent use; each request owns its own.
type KnowledgeBase struct {
	facts map[string]Fact
}

// NewKnowledgeBase returns an empty knowledge base.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{facts: make(map[string]Fact)}
}

// Assert adds f, replacing any fact with the same name.
func (kb *KnowledgeBase) Assert(f Fact) { kb.facts[f.Name] = f }

// Has reports whether a fact with the given name is present.
func (kb *KnowledgeBase) Has(name string) bool {
	_, ok := kb.facts[name]
	return ok
}

// Get returns the fact stored under name.
func (kb *KnowledgeBase) Get(name string) (Fact, bool) {
	f, ok := kb.facts[name]
	return f, ok
}

// Names returns the names of all facts in sorted order.
func (kb *KnowledgeBase) Names() []string {
	return slices.Sorted(maps.Keys(kb.facts))
}

// Len returns the number of facts.
func (kb *KnowledgeBase) Len() int { return len(kb.facts) }

// Clear removes every fact.
func (kb *KnowledgeBase) Clear() { clear(kb.facts) }

// ProductionRule is a static IF conditions THEN action ELSE alternative
// rule over facts.
type ProductionRule struct {
	ID         string   `json:"id" yaml:"id"`
	Conditions []string `json:"conditions" yaml:"conditions"`
	Action     string   `json:"action" yaml:"action"`
	ElseAction string   `json:"else_action,omitempty" yaml:"else_action,omitempty"`
	Priority   int      `json:"priority" yaml:"priority"`
}

// Triggered reports whether every condition is present in kb.
func (r ProductionRule) Triggered(kb *KnowledgeBase) bool {
	for _, c := range r.Conditions {
		if !kb.Has(c) {
			return false
		}
	}
	return true
}
