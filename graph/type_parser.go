package graph

import (
	"strings"
	"unicode"
)

var storageKeywords = map[string]Storage{
	"auto":     StorageAuto,
	"extern":   StorageExtern,
	"static":   StorageStatic,
	"register": StorageRegister,
}

var elaboratedKeywords = map[string]bool{
	"struct": true,
	"class":  true,
	"enum":   true,
	"union":  true,
}

// Parse builds a type from a type string as written in source, e.g.
// "const unsigned int *", "struct node*", "List<String>[]" or
// "int (*)(char, float)". The result and every type it wraps is registered.
// An empty or unparsable string yields the unknown type of lang.
func (m *TypeManager) Parse(s string, lang *Language) Type {
	if lang == nil {
		lang = noLanguage
	}
	t := parseType(strings.TrimSpace(s), lang)
	return m.Register(t)
}

func parseType(s string, lang *Language) Type {
	if s == "" {
		return lang.UnknownType()
	}
	if lang.HasFunctionPointers {
		if fp, ok := parseFunctionPointer(s, lang); ok {
			return fp
		}
	}
	s = strings.ReplaceAll(s, "...", "[]")

	var (
		names     []string
		generics  []Type
		storage   Storage
		baseQuals Qualifier
		modifier  = ModifierNotApplicable
		cur       Type
	)
	base := func() Type {
		if cur != nil {
			return cur
		}
		name := normalizeName(strings.Join(names, " "), lang)
		if name == "" && modifier != ModifierNotApplicable {
			name = "int"
		}
		switch {
		case name == "":
			cur = lang.UnknownType()
			return cur
		case name == "void":
			it := NewIncompleteType(lang)
			it.StorageClass = storage
			it.Qualifiers = baseQuals
			cur = it
			return cur
		}
		o := NewObjectType(name, lang, generics...)
		o.StorageClass = storage
		o.Qualifiers = baseQuals
		if modifier != ModifierNotApplicable {
			o.Modifier = modifier
		}
		cur = o
		return cur
	}

	for _, tok := range tokenizeType(s) {
		switch {
		case tok == "*":
			cur = base().Reference(OriginPointer)
		case tok == "&" || tok == "&&":
			cur = NewReferenceType(base())
		case strings.HasPrefix(tok, "["):
			cur = base().Reference(OriginArray)
		case strings.HasPrefix(tok, "<"):
			generics = parseGenerics(tok, lang)
			if o, ok := cur.(*ObjectType); ok {
				o.Generics = generics
			}
		case isQualifierWord(tok, lang):
			if cur == nil {
				setQualifier(&baseQuals, tok)
			} else {
				applyQualifier(cur, tok)
			}
		case tok == "signed":
			modifier = ModifierSigned
		case tok == "unsigned":
			modifier = ModifierUnsigned
		case lang.HasElaboratedTypeSpecifiers && elaboratedKeywords[tok]:
		default:
			if st, ok := storageKeywords[tok]; ok {
				storage = st
				continue
			}
			if cur == nil {
				names = append(names, tok)
			}
		}
	}
	return base()
}

func isQualifierWord(tok string, lang *Language) bool {
	return lang.IsQualifier(tok) || tok == "const" || tok == "volatile"
}

func setQualifier(q *Qualifier, tok string) {
	switch tok {
	case "const", "final":
		q.Const = true
	case "volatile":
		q.Volatile = true
	case "restrict", "__restrict":
		q.Restrict = true
	case "_Atomic", "atomic":
		q.Atomic = true
	}
}

func applyQualifier(t Type, tok string) {
	switch x := t.(type) {
	case *PointerType:
		setQualifier(&x.Qualifiers, tok)
	case *ReferenceType:
		setQualifier(&x.Qualifiers, tok)
	case *ObjectType:
		setQualifier(&x.Qualifiers, tok)
	case *IncompleteType:
		setQualifier(&x.Qualifiers, tok)
	}
}

// normalizeName collapses whitespace around namespace delimiters.
func normalizeName(name string, lang *Language) string {
	name = strings.Join(strings.Fields(name), " ")
	if d := lang.NamespaceDelimiter; d != "" {
		name = strings.ReplaceAll(name, " "+d+" ", d)
		name = strings.ReplaceAll(name, " "+d, d)
		name = strings.ReplaceAll(name, d+" ", d)
	}
	return name
}

// tokenizeType splits a type string into words, "*", "&", "[...]" groups and
// "<...>" groups. Brackets nest.
func tokenizeType(s string) []string {
	var out []string
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*':
			out = append(out, "*")
			i++
		case r == '&':
			if i+1 < len(rs) && rs[i+1] == '&' {
				out = append(out, "&&")
				i += 2
			} else {
				out = append(out, "&")
				i++
			}
		case r == '[' || r == '<':
			end := matchBracket(rs, i)
			out = append(out, string(rs[i:end]))
			i = end
		case r == ',' || r == '>' || r == ']' || r == '(' || r == ')':
			i++
		default:
			j := i
			for j < len(rs) && isTypeNameRune(rs[j]) {
				j++
			}
			if j == i {
				j++
			}
			out = append(out, string(rs[i:j]))
			i = j
		}
	}
	return out
}

func isTypeNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == ':' || r == '$' || r == '?'
}

// matchBracket returns the index after the bracket closing the one at i.
func matchBracket(rs []rune, i int) int {
	open := rs[i]
	closing := ']'
	if open == '<' {
		closing = '>'
	}
	depth := 0
	for j := i; j < len(rs); j++ {
		switch rs[j] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}
	return len(rs)
}

// splitTopLevel splits s at commas that are not nested in brackets.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func parseGenerics(tok string, lang *Language) []Type {
	inner := strings.TrimSuffix(strings.TrimPrefix(tok, "<"), ">")
	var out []Type
	for _, part := range splitTopLevel(inner) {
		out = append(out, parseType(part, lang))
	}
	return out
}

// parseFunctionPointer recognises "ret (*name)(params)".
func parseFunctionPointer(s string, lang *Language) (*FunctionPointerType, bool) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	closeIdx := strings.Index(s[open:], ")")
	if closeIdx < 0 {
		return nil, false
	}
	closeIdx += open
	declarator := strings.TrimSpace(s[open+1 : closeIdx])
	if !strings.HasPrefix(declarator, "*") {
		return nil, false
	}
	rest := strings.TrimSpace(s[closeIdx+1:])
	if !strings.HasPrefix(rest, "(") {
		return nil, false
	}
	paramList := strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")

	ret := parseType(strings.TrimSpace(s[:open]), lang)
	var params []Type
	for _, p := range splitTopLevel(paramList) {
		if p == "void" {
			continue
		}
		params = append(params, parseType(p, lang))
	}
	if _, ok := ret.(*IncompleteType); ok {
		ret = nil
	}
	return NewFunctionPointerType(params, ret, lang), true
}
