package frontend

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Source couples a tree-sitter tree's content with the builder of its file.
type Source struct {
	*Builder
	Content []byte
}

// Text returns the source text of n.
func (s *Source) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(s.Content[n.StartByte():n.EndByte()])
}

// At returns the origin of n: its text and its range in the file.
func (s *Source) At(n *sitter.Node) Origin {
	if n == nil {
		return Origin{}
	}
	start, end := n.StartPoint(), n.EndPoint()
	return Origin{
		Code: s.Text(n),
		Loc:  s.Loc(int(start.Row)+1, int(start.Column)+1, int(end.Row)+1, int(end.Column)+1),
	}
}

// NamedChildren returns the named children of n without comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || strings.HasSuffix(c.Type(), "comment") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Children returns all children of n, anonymous tokens included, without
// comments.
func Children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || strings.HasSuffix(c.Type(), "comment") {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ChildOfType returns the first named child of n of the given type.
func ChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for _, c := range NamedChildren(n) {
		if c.Type() == typ {
			return c
		}
	}
	return nil
}

// SameNode reports whether a and b span the same range with the same type.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
