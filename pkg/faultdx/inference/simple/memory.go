package simple

import (
	"sort"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
)

// Memory is the working memory of one diagnosis session.
// It is not safe for concurrent use; a session owns exactly one.
type Memory struct {
	nextID inference.FactID
	facts  map[inference.FactID]inference.Fact
	byKey  map[string]inference.FactID
	byKind map[string][]inference.FactID
	dirty  bool
}

// NewMemory creates an empty working memory
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		facts:  make(map[inference.FactID]inference.Fact),
		byKey:  make(map[string]inference.FactID),
		byKind: make(map[string][]inference.FactID),
	}
}

// Assert inserts a fact unless an equal one is present, and returns its id.
// Only a real insertion marks the memory dirty.
func (m *Memory) Assert(kind string, attrs map[string]string) inference.FactID {
	f := inference.Fact{Kind: kind, Attrs: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		f.Attrs[k] = v
	}

	key := f.Key()
	if id, ok := m.byKey[key]; ok {
		return id
	}

	f.ID = m.nextID
	m.nextID++
	m.facts[f.ID] = f
	m.byKey[key] = f.ID
	m.byKind[kind] = append(m.byKind[kind], f.ID)
	m.dirty = true
	return f.ID
}

// AssertFact is Assert for a fact template; the template's ID is ignored
func (m *Memory) AssertFact(f inference.Fact) inference.FactID {
	return m.Assert(f.Kind, f.Attrs)
}

// Retract removes a fact. Unknown ids are ignored.
func (m *Memory) Retract(id inference.FactID) {
	f, ok := m.facts[id]
	if !ok {
		return
	}
	delete(m.facts, id)
	delete(m.byKey, f.Key())

	ids := m.byKind[f.Kind]
	for i, other := range ids {
		if other == id {
			m.byKind[f.Kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	m.dirty = true
}

// Lookup returns the id of the fact equal to f, if present
func (m *Memory) Lookup(f inference.Fact) (inference.FactID, bool) {
	id, ok := m.byKey[f.Key()]
	return id, ok
}

// Get returns a fact by id
func (m *Memory) Get(id inference.FactID) (inference.Fact, bool) {
	f, ok := m.facts[id]
	return f, ok
}

// Match returns the ids of facts matching leaf, ascending
func (m *Memory) Match(leaf inference.Leaf) []inference.FactID {
	var out []inference.FactID
	for _, id := range m.byKind[leaf.Kind] {
		if _, ok := leaf.Match(m.facts[id]); ok {
			out = append(out, id)
		}
	}
	return out
}

// Holds reports whether pattern currently holds
func (m *Memory) Holds(p inference.Pattern) bool {
	ok, _ := Evaluate(p, m)
	return ok
}

// Facts returns every live fact in assertion order
func (m *Memory) Facts() []inference.Fact {
	out := make([]inference.Fact, 0, len(m.facts))
	for _, f := range m.facts {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FactsOfKind returns the live facts of kind in assertion order
func (m *Memory) FactsOfKind(kind string) []inference.Fact {
	ids := m.byKind[kind]
	out := make([]inference.Fact, len(ids))
	for i, id := range ids {
		out[i] = m.facts[id]
	}
	return out
}

// Len returns the number of live facts
func (m *Memory) Len() int { return len(m.facts) }

// Dirty reports whether the memory changed since the last ClearDirty
func (m *Memory) Dirty() bool { return m.dirty }

// ClearDirty resets the change marker
func (m *Memory) ClearDirty() { m.dirty = false }
