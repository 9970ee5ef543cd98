package graph

import (
	"sort"
)

// RecordLookup resolves a type name to the record declaring it. The scope
// manager implements it.
type RecordLookup interface {
	LookupRecord(name string) *RecordDeclaration
}

// CommonType returns the most specific type that every input is or derives
// from. Object types are related through the super classes and interfaces
// of their records; records are taken from the type's back-reference first
// and from records second. Pointer and reference inputs of the same shape
// are unwrapped, resolved and wrapped again. Inputs of different variants,
// or without a shared ancestor, have no common type.
func CommonType(types []Type, records RecordLookup) (Type, bool) {
	var in []Type
	for _, t := range types {
		if t != nil {
			in = append(in, t)
		}
	}
	if len(in) == 0 {
		return nil, false
	}
	first := in[0]
	allEqual := true
	for _, t := range in[1:] {
		if !t.Equal(first) {
			allEqual = false
			break
		}
	}
	if allEqual {
		return first, true
	}

	switch f := first.(type) {
	case *PointerType:
		elems := make([]Type, 0, len(in))
		for _, t := range in {
			p, ok := t.(*PointerType)
			if !ok || p.Origin != f.Origin {
				return nil, false
			}
			elems = append(elems, p.Element)
		}
		common, ok := CommonType(elems, records)
		if !ok {
			return nil, false
		}
		return common.Reference(f.Origin), true
	case *ReferenceType:
		elems := make([]Type, 0, len(in))
		for _, t := range in {
			r, ok := t.(*ReferenceType)
			if !ok {
				return nil, false
			}
			elems = append(elems, r.Element)
		}
		common, ok := CommonType(elems, records)
		if !ok {
			return nil, false
		}
		return NewReferenceType(common), true
	case *ObjectType:
		objs := make([]*ObjectType, 0, len(in))
		for _, t := range in {
			o, ok := t.(*ObjectType)
			if !ok {
				return nil, false
			}
			objs = append(objs, o)
		}
		return commonObjectType(objs, records)
	default:
		return nil, false
	}
}

// hierarchy caches ancestor sets and root distances of one query.
type hierarchy struct {
	records   RecordLookup
	ancestors map[string]map[string]*ObjectType
	depth     map[string]int
}

func (h *hierarchy) recordOf(t *ObjectType) *RecordDeclaration {
	if t.Record != nil {
		return t.Record
	}
	if h.records != nil {
		return h.records.LookupRecord(t.Name())
	}
	return nil
}

func (h *hierarchy) supers(t *ObjectType) []*ObjectType {
	r := h.recordOf(t)
	if r == nil {
		return nil
	}
	var out []*ObjectType
	for _, s := range r.SuperTypes() {
		if o, ok := s.(*ObjectType); ok {
			out = append(out, o)
		}
	}
	return out
}

// ancestorsOf returns t and everything above it, keyed by name.
func (h *hierarchy) ancestorsOf(t *ObjectType) map[string]*ObjectType {
	if a, ok := h.ancestors[t.Name()]; ok {
		return a
	}
	out := map[string]*ObjectType{t.Name(): t}
	queue := []*ObjectType{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, s := range h.supers(cur) {
			if _, seen := out[s.Name()]; seen {
				continue
			}
			out[s.Name()] = s
			queue = append(queue, s)
		}
	}
	h.ancestors[t.Name()] = out
	return out
}

// depthOf is the length of the longest super type chain above t.
func (h *hierarchy) depthOf(t *ObjectType, visiting map[string]bool) int {
	if d, ok := h.depth[t.Name()]; ok {
		return d
	}
	if visiting[t.Name()] {
		return 0
	}
	visiting[t.Name()] = true
	d := 0
	for _, s := range h.supers(t) {
		d = max(d, 1+h.depthOf(s, visiting))
	}
	delete(visiting, t.Name())
	h.depth[t.Name()] = d
	return d
}

func commonObjectType(objs []*ObjectType, records RecordLookup) (Type, bool) {
	h := &hierarchy{
		records:   records,
		ancestors: make(map[string]map[string]*ObjectType),
		depth:     make(map[string]int),
	}

	shared := h.ancestorsOf(objs[0])
	for _, o := range objs[1:] {
		next := make(map[string]*ObjectType)
		anc := h.ancestorsOf(o)
		for name, t := range shared {
			if _, ok := anc[name]; ok {
				next[name] = t
			}
		}
		shared = next
	}
	if len(shared) == 0 {
		return nil, false
	}

	// Prefer members descending from every other member of the intersection.
	var candidates []*ObjectType
	for name, t := range shared {
		anc := h.ancestorsOf(t)
		all := true
		for other := range shared {
			if other == name {
				continue
			}
			if _, ok := anc[other]; !ok {
				all = false
				break
			}
		}
		if all {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		for _, t := range shared {
			candidates = append(candidates, t)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := h.depthOf(candidates[i], map[string]bool{})
		dj := h.depthOf(candidates[j], map[string]bool{})
		if di != dj {
			return di > dj
		}
		return candidates[i].Name() < candidates[j].Name()
	})
	best := candidates[0]
	if r := h.recordOf(best); r != nil {
		return r.ToType(), true
	}
	return best, true
}
