package graph

import (
	"sync"
)

type typeParamKey struct {
	record *RecordDeclaration
	name   string
}

// TypeManager is the type context of one analysis run. It registers every
// type instance created through it, caches type parameters per record and
// answers common type queries. It is safe for concurrent use.
type TypeManager struct {
	mu         sync.Mutex
	instances  []Type
	seen       map[Type]struct{}
	firstOrder []Type
	typeParams map[typeParamKey]*ParameterizedType
	records    RecordLookup
	autoReset  bool
}

// NewTypeManager returns an empty manager with auto reset enabled.
func NewTypeManager() *TypeManager {
	return &TypeManager{
		seen:       make(map[Type]struct{}),
		typeParams: make(map[typeParamKey]*ParameterizedType),
		autoReset:  true,
	}
}

// Reset forgets every registered type and cached type parameter.
func (m *TypeManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances = nil
	m.seen = make(map[Type]struct{})
	m.firstOrder = nil
	m.typeParams = make(map[typeParamKey]*ParameterizedType)
}

// SetAutoReset controls whether the pipeline resets the manager once a run
// finishes. Tests disable it to share state between runs deliberately.
func (m *TypeManager) SetAutoReset(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReset = on
}

// AutoReset reports the auto reset setting.
func (m *TypeManager) AutoReset() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoReset
}

// SetRecordLookup installs the record lookup used by common type queries.
func (m *TypeManager) SetRecordLookup(r RecordLookup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = r
}

// NewWave starts a wave that resolves common types through the manager's
// record lookup.
func (m *TypeManager) NewWave() *Wave {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := NewWave()
	w.records = m.records
	return w
}

// SetType is graph.SetType with the manager's record lookup.
func (m *TypeManager) SetType(n HasType, t Type) {
	w := m.NewWave()
	w.SetType(n, t)
	w.Drain()
}

// Register records t and, when t wraps other types, its root. It returns t.
func (m *TypeManager) Register(t Type) Type {
	if t == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.register(t)
	return t
}

func (m *TypeManager) register(t Type) {
	if _, ok := t.(*UnknownType); ok {
		return
	}
	root := t.Root()
	if root != t {
		m.register(root)
	}
	if o, ok := t.(*ObjectType); ok {
		for _, g := range o.Generics {
			m.register(g)
		}
	}
	if _, ok := m.seen[t]; ok {
		return
	}
	m.seen[t] = struct{}{}
	m.instances = append(m.instances, t)
	if root == t && !containsType(m.firstOrder, t) {
		m.firstOrder = append(m.firstOrder, t)
	}
}

// ObjectType creates and registers an object type.
func (m *TypeManager) ObjectType(name string, lang *Language, generics ...Type) *ObjectType {
	t := NewObjectType(name, lang, generics...)
	m.Register(t)
	return t
}

// FirstOrderTypes returns the registered types that do not wrap another
// type, deduplicated by structural equality.
func (m *TypeManager) FirstOrderTypes() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, len(m.firstOrder))
	copy(out, m.firstOrder)
	return out
}

// InstancesOf returns every registered instance structurally equal to t.
func (m *TypeManager) InstancesOf(t Type) []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Type
	for _, x := range m.instances {
		if x.Equal(t) {
			out = append(out, x)
		}
	}
	return out
}

// Len returns the number of registered instances.
func (m *TypeManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

// GetTypeParameter returns the type parameter name of record. The same
// (record, name) pair always yields the identical instance.
func (m *TypeManager) GetTypeParameter(record *RecordDeclaration, name string) *ParameterizedType {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := typeParamKey{record: record, name: name}
	if p, ok := m.typeParams[key]; ok {
		return p
	}
	var lang *Language
	if record != nil {
		lang = record.Language
	}
	p := &ParameterizedType{
		TypeBase: TypeBase{TypeName: name, Lang: lang},
		Record:   record,
	}
	m.typeParams[key] = p
	return p
}

// TypeParameters returns the cached type parameters of record.
func (m *TypeManager) TypeParameters(record *RecordDeclaration) []*ParameterizedType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ParameterizedType
	for k, p := range m.typeParams {
		if k.record == record {
			out = append(out, p)
		}
	}
	return out
}

// GetCommonType is CommonType using the manager's record lookup.
func (m *TypeManager) GetCommonType(types []Type) (Type, bool) {
	m.mu.Lock()
	records := m.records
	m.mu.Unlock()
	return CommonType(types, records)
}

// IsSupertypeOf reports whether sub is super or derives from it.
func (m *TypeManager) IsSupertypeOf(super, sub Type) bool {
	if super == nil || sub == nil {
		return false
	}
	common, ok := m.GetCommonType([]Type{super, sub})
	return ok && common.Equal(super)
}
