package graph

import "slices"

// HasType is implemented by nodes carrying a type: expressions, value
// declarations and functions.
type HasType interface {
	Node
	// Type returns the current type. It is nil until the first assignment;
	// use TypeOf for a non-nil view.
	Type() Type
	// PossibleSubTypes returns the types observed flowing into the node.
	PossibleSubTypes() []Type
	// PropagationType is the type handed to listeners. It strips references.
	PropagationType() Type
	typeState() *Typed
}

// TypeListener reacts to type changes of the nodes it is registered on.
type TypeListener interface {
	HasType
	TypeChanged(w *Wave, src HasType, old Type)
	PossibleSubTypesChanged(w *Wave, src HasType, old []Type)
}

// Typed is embedded by every HasType node.
type Typed struct {
	typ       Type
	subTypes  []Type
	listeners []TypeListener
}

func (t *Typed) Type() Type                { return t.typ }
func (t *Typed) PossibleSubTypes() []Type  { return t.subTypes }
func (t *Typed) Listeners() []TypeListener { return t.listeners }
func (t *Typed) typeState() *Typed         { return t }

func (t *Typed) PropagationType() Type {
	if r, ok := t.typ.(*ReferenceType); ok {
		return r.Element
	}
	return t.typ
}

// TypeOf returns the type of n, or the unknown type of n's language when the
// node has not been typed yet.
func TypeOf(n HasType) Type {
	if IsNil(n) {
		return UnknownTypeFor(nil)
	}
	if t := n.Type(); t != nil {
		return t
	}
	return UnknownTypeFor(n.Base().Language)
}

// PropagationTypeOf is TypeOf for the propagation type.
func PropagationTypeOf(n HasType) Type {
	if IsNil(n) {
		return UnknownTypeFor(nil)
	}
	if t := n.PropagationType(); t != nil {
		return t
	}
	return UnknownTypeFor(n.Base().Language)
}

// Wave is one propagation of type changes. Every node changed during the wave
// is recorded in its root set and ignores any further change in the same wave,
// which terminates propagation along listener cycles. Notifications are
// delivered through a FIFO worklist instead of nested callbacks.
type Wave struct {
	root    map[Node]struct{}
	queue   []func()
	records RecordLookup
}

// NewWave starts an empty wave.
func NewWave() *Wave {
	return &Wave{root: make(map[Node]struct{})}
}

// InRoot reports whether n has changed in this wave.
func (w *Wave) InRoot(n Node) bool {
	_, ok := w.root[n]
	return ok
}

// Root returns the number of nodes changed in this wave.
func (w *Wave) Root() int { return len(w.root) }

func (w *Wave) enqueue(f func()) { w.queue = append(w.queue, f) }

// Drain delivers queued notifications until the worklist is empty.
func (w *Wave) Drain() {
	for len(w.queue) > 0 {
		f := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		f()
	}
}

// SetType merges t into n's possible subtypes and updates n's type to the
// common type of that set, or to t when there is none. Records are looked up
// through the lookup of the wave. An unknown type never
// replaces a known one. Listeners are queued when the type changed.
func (w *Wave) SetType(n HasType, t Type) {
	if IsNil(n) || t == nil || w.InRoot(n) {
		return
	}
	st := n.typeState()
	if IsUnknown(t) {
		if st.typ == nil {
			st.typ = t
		}
		return
	}
	old := st.typ

	subs := st.subTypes
	if !containsType(subs, t) {
		subs = append(slices.Clip(subs), t)
	}
	next := t
	if len(subs) > 1 {
		if common, ok := CommonType(subs, w.records); ok {
			next = common
		}
	}
	oldSubs := st.subTypes
	st.subTypes = subs
	subsChanged := len(oldSubs) != len(subs)

	if old != nil && old.Equal(next) && !subsChanged {
		return
	}
	st.typ = next
	w.root[n] = struct{}{}

	typeChanged := old == nil || !old.Equal(next)
	for _, l := range st.listeners {
		if typeChanged {
			w.enqueue(func() { l.TypeChanged(w, n, old) })
		}
		if subsChanged {
			w.enqueue(func() { l.PossibleSubTypesChanged(w, n, oldSubs) })
		}
	}
}

// ReplaceType sets n's type to exactly t and collapses its possible subtypes
// to {t}, bypassing the merge of SetType. Coercion rules use it.
func (w *Wave) ReplaceType(n HasType, t Type) {
	if IsNil(n) || t == nil || IsUnknown(t) || w.InRoot(n) {
		return
	}
	st := n.typeState()
	old, oldSubs := st.typ, st.subTypes
	if old != nil && old.Equal(t) && len(oldSubs) == 1 && oldSubs[0].Equal(t) {
		return
	}
	st.typ = t
	st.subTypes = []Type{t}
	w.root[n] = struct{}{}
	for _, l := range st.listeners {
		w.enqueue(func() { l.TypeChanged(w, n, old) })
		w.enqueue(func() { l.PossibleSubTypesChanged(w, n, oldSubs) })
	}
}

// SetPossibleSubTypes replaces n's possible subtypes and queues listeners.
func (w *Wave) SetPossibleSubTypes(n HasType, subs []Type) {
	if IsNil(n) || w.InRoot(n) {
		return
	}
	st := n.typeState()
	var clean []Type
	for _, s := range subs {
		if !IsUnknown(s) && !containsType(clean, s) {
			clean = append(clean, s)
		}
	}
	if typesEqual(st.subTypes, clean) {
		return
	}
	old := st.subTypes
	st.subTypes = clean
	w.root[n] = struct{}{}
	for _, l := range st.listeners {
		w.enqueue(func() { l.PossibleSubTypesChanged(w, n, old) })
	}
}

// SetType assigns t to n in a new wave and propagates it to completion.
func SetType(n HasType, t Type) {
	w := NewWave()
	w.SetType(n, t)
	w.Drain()
}

// SetPossibleSubTypes is the single-wave form of Wave.SetPossibleSubTypes.
func SetPossibleSubTypes(n HasType, subs []Type) {
	w := NewWave()
	w.SetPossibleSubTypes(n, subs)
	w.Drain()
}

// ResetType clears n's type and subtypes without notifying anyone. Used by
// frontends and passes that recompute a declared type from scratch.
func ResetType(n HasType, t Type) {
	st := n.typeState()
	st.typ = t
	st.subTypes = nil
	if t != nil && !IsUnknown(t) {
		st.subTypes = []Type{t}
	}
}

// RegisterTypeListener makes l listen to src and immediately notifies l of
// src's current type and subtypes.
func RegisterTypeListener(src HasType, l TypeListener) {
	if IsNil(src) || IsNil(l) {
		return
	}
	st := src.typeState()
	if slices.Contains(st.listeners, l) {
		return
	}
	st.listeners = append(st.listeners, l)

	w := NewWave()
	w.root[src] = struct{}{}
	if src.Type() != nil {
		l.TypeChanged(w, src, nil)
	}
	if len(src.PossibleSubTypes()) > 0 {
		l.PossibleSubTypesChanged(w, src, nil)
	}
	w.Drain()
}

// UnregisterTypeListener removes l from src's listeners.
func UnregisterTypeListener(src HasType, l TypeListener) {
	if IsNil(src) || IsNil(l) {
		return
	}
	st := src.typeState()
	st.listeners = slices.DeleteFunc(st.listeners, func(x TypeListener) bool { return x == l })
}

// IsListening reports whether l is registered on src.
func IsListening(src HasType, l TypeListener) bool {
	if IsNil(src) || IsNil(l) {
		return false
	}
	return slices.Contains(src.typeState().listeners, l)
}

// mergeSubTypes unions the subtypes of dst with those of src.
func mergeSubTypes(dst HasType, src HasType) []Type {
	out := slices.Clone(dst.PossibleSubTypes())
	for _, s := range src.PossibleSubTypes() {
		if !containsType(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// followSource is the default listener policy: take the source's
// propagation type and merge its subtypes.
func followSource(w *Wave, self, src HasType) {
	w.SetType(self, PropagationTypeOf(src))
}

func followSubTypes(w *Wave, self, src HasType) {
	w.SetPossibleSubTypes(self, mergeSubTypes(self, src))
}
