// ABOUTME: Constraint groups combine child satisfactions with min (match all) or max (match any)
// ABOUTME: Matcher children of the same match type are scored jointly over their per-track vectors

package constraint

import (
	"math/rand/v2"
	"sync"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// Match selects how a group combines its children.
type Match int

// Group combination modes.
const (
	MatchAll Match = iota
	MatchAny
)

func (m Match) String() string {
	if m == MatchAny {
		return "any"
	}

	return "all"
}

// ParseMatch reads a persisted match type; anything but "any" is match all.
func ParseMatch(s string) Match {
	if s == "any" {
		return MatchAny
	}

	return MatchAll
}

// Group is an inner node of the constraint tree. It is safe to edit from one
// goroutine while another scores.
type Group struct {
	mu       sync.RWMutex
	match    Match
	children []Node
}

// NewGroup creates an empty group.
func NewGroup(match Match) *Group {
	return &Group{match: match}
}

// Name describes the group.
func (g *Group) Name() string {
	if g.Match() == MatchAny {
		return "Match Any group"
	}

	return "Match All group"
}

// Match returns the combination mode.
func (g *Group) Match() Match {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.match
}

// SetMatch changes the combination mode.
func (g *Group) SetMatch(m Match) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.match = m
}

// Add appends a child.
func (g *Group) Add(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.children = append(g.children, n)
}

// Insert places a child at index i, clamped to the valid range.
func (g *Group) Insert(i int, n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i = max(0, min(i, len(g.children)))
	g.children = append(g.children, nil)
	copy(g.children[i+1:], g.children[i:])
	g.children[i] = n
}

// Remove deletes the first occurrence of n and reports whether it was found.
func (g *Group) Remove(n Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, c := range g.children {
		if c == n {
			g.children = append(g.children[:i], g.children[i+1:]...)
			return true
		}
	}

	return false
}

// RemoveAt deletes the child at index i and returns it, or nil when out of range.
func (g *Group) RemoveAt(i int) Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	if i < 0 || i >= len(g.children) {
		return nil
	}

	n := g.children[i]
	g.children = append(g.children[:i], g.children[i+1:]...)

	return n
}

// Children returns a copy of the child list.
func (g *Group) Children() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Node, len(g.children))
	copy(out, g.children)

	return out
}

// Len returns the number of children.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.children)
}

// Walk visits the group and its descendants depth-first, parents first.
func (g *Group) Walk(fn func(n Node, depth int)) {
	g.walk(fn, 0)
}

func (g *Group) walk(fn func(n Node, depth int), depth int) {
	fn(g, depth)

	for _, c := range g.Children() {
		if sub, ok := c.(*Group); ok {
			sub.walk(fn, depth+1)
			continue
		}

		fn(c, depth+1)
	}
}

// UseRand hands rng to every descendant that draws random numbers.
func (g *Group) UseRand(rng *rand.Rand) {
	for _, c := range g.Children() {
		if r, ok := c.(RandomUser); ok {
			r.UseRand(rng)
		}
	}
}

// Satisfaction combines children. An empty group or empty playlist is
// vacuously satisfied.
func (g *Group) Satisfaction(tracks []playlist.Track) float64 {
	g.mu.RLock()
	match := g.match
	children := make([]Node, len(g.children))
	copy(children, g.children)
	g.mu.RUnlock()

	if len(children) == 0 || len(tracks) == 0 {
		return 1
	}

	joint, tied := jointMatches(children, tracks, match)

	values := make([]float64, 0, len(children))
	for i, c := range children {
		if tied[i] {
			continue
		}

		values = append(values, clamp(c.Satisfaction(tracks)))
	}

	values = append(values, joint...)

	result := values[0]
	for _, v := range values[1:] {
		if match == MatchAny {
			result = max(result, v)
		} else {
			result = min(result, v)
		}
	}

	return clamp(result)
}

// jointMatches scores matcher children sharing a MatchType together. Their
// vectors are ORed (match any) or ANDed (match all) and the fraction of
// passing positions replaces their individual values.
func jointMatches(children []Node, tracks []playlist.Track, match Match) ([]float64, map[int]bool) {
	buckets := make(map[int][]int)

	var order []int

	for i, c := range children {
		m, ok := c.(Matcher)
		if !ok {
			continue
		}

		t := m.MatchType()
		if _, seen := buckets[t]; !seen {
			order = append(order, t)
		}

		buckets[t] = append(buckets[t], i)
	}

	tied := make(map[int]bool)

	var joint []float64

	for _, t := range order {
		members := buckets[t]
		if len(members) < 2 {
			continue
		}

		combined := make([]bool, len(tracks))
		for k, idx := range members {
			vec := children[idx].(Matcher).WhatTracksMatch(tracks)

			for p := range combined {
				bit := p < len(vec) && vec[p]

				switch {
				case k == 0:
					combined[p] = bit
				case match == MatchAny:
					combined[p] = combined[p] || bit
				default:
					combined[p] = combined[p] && bit
				}
			}

			tied[idx] = true
		}

		passing := 0
		for _, b := range combined {
			if b {
				passing++
			}
		}

		joint = append(joint, float64(passing)/float64(len(tracks)))
	}

	return joint, tied
}

// SuggestPlaylistSize is the integer mean of the children's non-zero suggestions.
func (g *Group) SuggestPlaylistSize() int {
	sum, n := 0, 0

	for _, c := range g.Children() {
		if s := c.SuggestPlaylistSize(); s > 0 {
			sum += s
			n++
		}
	}

	if n == 0 {
		return 0
	}

	return sum / n
}

// InitQuery ANDs (match all) or ORs (match any) the children's hints.
func (g *Group) InitQuery(b domain.FilterBuilder) {
	children := g.Children()
	if len(children) == 0 {
		return
	}

	if g.Match() == MatchAny {
		b.BeginOr()
	} else {
		b.BeginAnd()
	}

	for _, c := range children {
		c.InitQuery(b)
	}

	b.EndAndOr()
}
