// ABOUTME: Core interfaces of the constraint tree and the persisted attribute map
// ABOUTME: Shared helpers for clamping and the logistic score shapes used by playlist-wide constraints

// Package constraint implements the constraint tree a playlist is scored against.
// Every node maps a candidate playlist to a satisfaction in [0,1]; groups
// combine children with min (match all) or max (match any).
package constraint

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// Node is anything that can score a playlist.
type Node interface {
	// Satisfaction returns a value in [0,1]. It is total, including for an
	// empty playlist.
	Satisfaction(tracks []playlist.Track) float64
	// SuggestPlaylistSize returns a preferred track count, or 0 for no opinion.
	SuggestPlaylistSize() int
	// InitQuery writes an advisory domain filter. Nodes without a hint do nothing.
	InitQuery(b domain.FilterBuilder)
	Name() string
}

// Constraint is a persisted leaf of the tree.
type Constraint interface {
	Node
	Kind() string
	Attributes() Attributes
}

// Matcher is a constraint that decides pass/fail per track. Matchers in the
// same group sharing a MatchType are evaluated jointly.
type Matcher interface {
	WhatTracksMatch(tracks []playlist.Track) []bool
	MatchType() int
}

// RandomUser is a node whose evaluation draws random numbers.
type RandomUser interface {
	UseRand(rng *rand.Rand)
}

// Comparison selects the shape of a playlist-wide numeric constraint.
type Comparison int

// Comparison values as persisted.
const (
	Less Comparison = iota
	Equal
	Greater
)

func (c Comparison) String() string {
	switch c {
	case Less:
		return "less than"
	case Greater:
		return "more than"
	default:
		return "equal to"
	}
}

func parseComparison(v int) Comparison {
	if v < int(Less) || v > int(Greater) {
		return Equal
	}

	return Comparison(v)
}

// logistic scores x = actual - target with steepness k.
func logistic(cmp Comparison, x, k float64) float64 {
	switch cmp {
	case Less:
		return clamp(1 / (1 + math.Exp(k*x)))
	case Greater:
		return clamp(1 / (1 + math.Exp(-k*x)))
	default:
		return clamp(4 / ((1 + math.Exp(k*x)) * (1 + math.Exp(-k*x))))
	}
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}

	return v
}

// Attributes is the flat key/value form a constraint is persisted as.
type Attributes map[string]string

// Keys returns the attribute names in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// String returns the value for key, or def when missing.
func (a Attributes) String(key, def string) string {
	if v, ok := a[key]; ok {
		return v
	}

	return def
}

// Int returns the integer value for key, or def when missing or malformed.
func (a Attributes) Int(key string, def int64) int64 {
	v, ok := a[key]
	if !ok {
		return def
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if ferr != nil {
			return def
		}

		return int64(f)
	}

	return n
}

// Float returns the float value for key, or def when missing or malformed.
func (a Attributes) Float(key string, def float64) float64 {
	v, ok := a[key]
	if !ok {
		return def
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}

	return f
}

// Bool returns true only for the literal "true".
func (a Attributes) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}

	return strings.TrimSpace(v) == "true"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func clampStrictness(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}

	return s
}
