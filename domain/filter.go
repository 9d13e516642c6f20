// ABOUTME: Filter tree used to narrow the candidate domain before a solve
// ABOUTME: Builder turns constraint query hints into a tree that collections evaluate or compile

// Package domain loads the pool of candidate tracks a solve searches over.
// Constraints describe advisory narrowing through the FilterBuilder calls; the
// resulting Filter is evaluated in memory or compiled by a store.
package domain

import (
	"strconv"
	"strings"

	"playlist-generator/playlist"
)

// NumberComparison is the operator of a numeric filter.
type NumberComparison int

// Numeric filter operators.
const (
	Equals NumberComparison = iota
	GreaterThan
	LessThan
)

// FilterBuilder is the narrowing surface constraints write their hints to.
type FilterBuilder interface {
	AddFilter(field playlist.Field, text string, matchBegin, matchEnd bool)
	ExcludeFilter(field playlist.Field, text string, matchBegin, matchEnd bool)
	AddNumberFilter(field playlist.Field, value int64, cmp NumberComparison)
	ExcludeNumberFilter(field playlist.Field, value int64, cmp NumberComparison)
	BeginAnd()
	BeginOr()
	EndAndOr()
}

// FilterKind identifies a node of the filter tree.
type FilterKind int

// Filter node kinds.
const (
	KindAnd FilterKind = iota
	KindOr
	KindText
	KindNumber
)

// Filter is one node of a filter tree. A nil *Filter matches every track.
type Filter struct {
	Kind     FilterKind
	Negate   bool
	Field    playlist.Field
	Text     string
	Begin    bool // Text must match at the start
	End      bool // Text must match at the end
	Value    int64
	Compare  NumberComparison
	Children []*Filter
}

// Match reports whether the track passes the filter.
// Text comparisons are case-insensitive.
func (f *Filter) Match(t *playlist.Track) bool {
	if f == nil {
		return true
	}

	var ok bool

	switch f.Kind {
	case KindAnd:
		ok = true

		for _, c := range f.Children {
			if !c.Match(t) {
				ok = false
				break
			}
		}
	case KindOr:
		// An empty Or group contributes nothing.
		ok = len(f.Children) == 0

		for _, c := range f.Children {
			if c.Match(t) {
				ok = true
				break
			}
		}
	case KindText:
		ok = f.matchText(t)
	case KindNumber:
		ok = f.matchNumber(t)
	}

	if f.Negate {
		return !ok
	}

	return ok
}

func (f *Filter) matchText(t *playlist.Track) bool {
	switch f.Field {
	case playlist.FieldAny:
		for _, field := range playlist.TextFields {
			if f.matchTextField(t, field) {
				return true
			}
		}

		return false
	default:
		return f.matchTextField(t, f.Field)
	}
}

func (f *Filter) matchTextField(t *playlist.Track, field playlist.Field) bool {
	if field == playlist.FieldLabel {
		for _, l := range t.Labels {
			if MatchText(l, f.Text, f.Begin, f.End) {
				return true
			}
		}

		return false
	}

	return MatchText(t.Text(field), f.Text, f.Begin, f.End)
}

func (f *Filter) matchNumber(t *playlist.Track) bool {
	v := t.Number(f.Field)

	switch f.Compare {
	case GreaterThan:
		return v > f.Value
	case LessThan:
		return v < f.Value
	default:
		return v == f.Value
	}
}

// MatchText compares case-insensitively: begin and end means equality, only
// begin a prefix, only end a suffix, neither a substring.
func MatchText(value, pattern string, begin, end bool) bool {
	value = strings.ToLower(value)
	pattern = strings.ToLower(pattern)

	switch {
	case begin && end:
		return value == pattern
	case begin:
		return strings.HasPrefix(value, pattern)
	case end:
		return strings.HasSuffix(value, pattern)
	default:
		return strings.Contains(value, pattern)
	}
}

// String renders the filter for debug logs.
func (f *Filter) String() string {
	if f == nil {
		return "*"
	}

	var b strings.Builder
	if f.Negate {
		b.WriteString("NOT ")
	}

	switch f.Kind {
	case KindAnd, KindOr:
		op := " AND "
		if f.Kind == KindOr {
			op = " OR "
		}

		parts := make([]string, 0, len(f.Children))
		for _, c := range f.Children {
			parts = append(parts, c.String())
		}

		b.WriteString("(" + strings.Join(parts, op) + ")")
	case KindText:
		b.WriteString(fieldLabel(f.Field) + ":" + strconv.Quote(f.Text))
	case KindNumber:
		ops := map[NumberComparison]string{Equals: "=", GreaterThan: ">", LessThan: "<"}
		b.WriteString(fieldLabel(f.Field) + ops[f.Compare] + strconv.FormatInt(f.Value, 10))
	}

	return b.String()
}

func fieldLabel(f playlist.Field) string {
	if f == playlist.FieldAny {
		return "any"
	}

	return f.String()
}

// Builder implements FilterBuilder and accumulates a Filter tree.
// Calls outside any Begin group are ANDed together.
type Builder struct {
	root  *Filter
	stack []*Filter
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	root := &Filter{Kind: KindAnd}

	return &Builder{root: root, stack: []*Filter{root}}
}

func (b *Builder) top() *Filter {
	return b.stack[len(b.stack)-1]
}

func (b *Builder) push(f *Filter) {
	top := b.top()
	top.Children = append(top.Children, f)
}

// AddFilter requires the text to match the field.
func (b *Builder) AddFilter(field playlist.Field, text string, matchBegin, matchEnd bool) {
	b.push(&Filter{Kind: KindText, Field: field, Text: text, Begin: matchBegin, End: matchEnd})
}

// ExcludeFilter requires the text to not match the field.
func (b *Builder) ExcludeFilter(field playlist.Field, text string, matchBegin, matchEnd bool) {
	b.push(&Filter{Kind: KindText, Negate: true, Field: field, Text: text, Begin: matchBegin, End: matchEnd})
}

// AddNumberFilter requires the numeric comparison to hold.
func (b *Builder) AddNumberFilter(field playlist.Field, value int64, cmp NumberComparison) {
	b.push(&Filter{Kind: KindNumber, Field: field, Value: value, Compare: cmp})
}

// ExcludeNumberFilter requires the numeric comparison to fail.
func (b *Builder) ExcludeNumberFilter(field playlist.Field, value int64, cmp NumberComparison) {
	b.push(&Filter{Kind: KindNumber, Negate: true, Field: field, Value: value, Compare: cmp})
}

// BeginAnd opens a group whose members must all match.
func (b *Builder) BeginAnd() {
	g := &Filter{Kind: KindAnd}
	b.push(g)
	b.stack = append(b.stack, g)
}

// BeginOr opens a group where any member may match.
func (b *Builder) BeginOr() {
	g := &Filter{Kind: KindOr}
	b.push(g)
	b.stack = append(b.stack, g)
}

// EndAndOr closes the innermost open group. Unbalanced calls are ignored.
func (b *Builder) EndAndOr() {
	if len(b.stack) > 1 {
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// Filter closes any open groups and returns the simplified tree, or nil when
// no hint restricts the domain.
func (b *Builder) Filter() *Filter {
	b.stack = b.stack[:1]

	return simplify(b.root)
}

// simplify drops empty groups and unwraps single-child groups.
func simplify(f *Filter) *Filter {
	if f == nil || (f.Kind != KindAnd && f.Kind != KindOr) {
		return f
	}

	children := make([]*Filter, 0, len(f.Children))
	for _, c := range f.Children {
		if s := simplify(c); s != nil {
			children = append(children, s)
		}
	}

	switch len(children) {
	case 0:
		return nil
	case 1:
		if f.Negate {
			return &Filter{Kind: f.Kind, Negate: true, Children: children}
		}

		return children[0]
	}

	return &Filter{Kind: f.Kind, Negate: f.Negate, Children: children}
}
