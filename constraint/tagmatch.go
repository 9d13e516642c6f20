// ABOUTME: TagMatch compares one track attribute against a value with a strictness-controlled fuzzy kernel
// ABOUTME: Per-track pass/fail decisions are drawn once and memoised by track URL until a parameter changes

package constraint

import (
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// Comparison codes for numeric and date fields.
const (
	NumLess    = 0
	NumEquals  = 1
	NumGreater = 2
	DateWithin = 3
)

// Comparison codes for text fields.
const (
	TextEquals     = 0
	TextStartsWith = 1
	TextEndsWith   = 2
	TextContains   = 3
	TextRegex      = 4
)

const isoDate = "2006-01-02"

// Calibrated distances at which a fuzzy match falls to 1/e at strictness 0.
var fieldWeights = map[playlist.Field]float64{
	playlist.FieldYear:        8,
	playlist.FieldLength:      50000,
	playlist.FieldRating:      3,
	playlist.FieldTrackNumber: 5,
	playlist.FieldDiscNumber:  1,
	playlist.FieldBitrate:     64,
	playlist.FieldFilesize:    2000000,
	playlist.FieldPlayCount:   4,
	playlist.FieldFirstPlayed: 8035200,
	playlist.FieldLastPlayed:  8035200,
	playlist.FieldCreateDate:  8035200,
}

// TagMatch makes tracks match a tag condition.
type TagMatch struct {
	mu         sync.Mutex
	field      playlist.Field
	comparison int
	value      string
	invert     bool
	strictness float64

	num    int64          // parsed numeric value (seconds for dates and durations)
	re     *regexp.Regexp // compiled when comparison is TextRegex
	rng    *rand.Rand
	cache  map[string]bool
	now    func() time.Time
	logger zerolog.Logger
}

// NewTagMatch creates a TagMatch with strictness 1 and no inversion.
func NewTagMatch(field playlist.Field, comparison int, value string) *TagMatch {
	t := &TagMatch{
		field:      field,
		comparison: comparison,
		value:      value,
		strictness: 1,
		cache:      make(map[string]bool),
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	t.compile()

	return t
}

func newDefaultTagMatch() *TagMatch {
	return NewTagMatch(playlist.FieldTitle, TextContains, "")
}

func tagMatchFromAttributes(a Attributes) (Constraint, error) {
	field, ok := playlist.ParseField(a.String("field", "title"))
	if !ok {
		field = playlist.FieldTitle
	}

	t := &TagMatch{
		field:      field,
		comparison: int(a.Int("comparison", TextContains)),
		invert:     a.Bool("invert", false),
		strictness: clampStrictness(a.Float("strictness", 1)),
		cache:      make(map[string]bool),
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	t.value = a.String("value", "")
	t.compile()

	return t, nil
}

// Kind returns "TagMatch".
func (t *TagMatch) Kind() string { return "TagMatch" }

// SetLogger sets where invalid patterns are reported.
func (t *TagMatch) SetLogger(logger zerolog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger = logger
	t.compile()
}

// Field returns the compared attribute.
func (t *TagMatch) Field() playlist.Field {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.field
}

// SetField changes the compared attribute.
func (t *TagMatch) SetField(f playlist.Field) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.field = f
	t.compile()
}

// SetComparison changes the comparison code.
func (t *TagMatch) SetComparison(c int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.comparison = c
	t.compile()
}

// SetValue changes the target value in its persisted form.
func (t *TagMatch) SetValue(v string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.value = v
	t.compile()
}

// SetInvert flips pass and fail.
func (t *TagMatch) SetInvert(inv bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.invert = inv
	t.resetLocked()
}

// SetStrictness sets the fuzziness in [0,1]; 1 is an exact test.
func (t *TagMatch) SetStrictness(s float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.strictness = clampStrictness(s)
	t.resetLocked()
}

// UseRand sets the source of the per-track draws.
func (t *TagMatch) UseRand(rng *rand.Rand) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rng = rng
	t.resetLocked()
}

// ResetMatchCache forgets every memoised decision.
func (t *TagMatch) ResetMatchCache() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked()
}

func (t *TagMatch) resetLocked() {
	clear(t.cache)
}

// normalizedComparison maps out-of-range codes to the field's default.
func (t *TagMatch) normalizedComparison() int {
	c := t.comparison

	switch {
	case t.field.IsDate():
		if c < NumLess || c > DateWithin {
			return NumEquals
		}
	case t.field.IsNumeric():
		if c < NumLess || c > NumGreater {
			return NumEquals
		}
	default:
		if c < TextEquals || c > TextRegex {
			return TextContains
		}
	}

	return c
}

// compile parses the value for the current field and comparison. The caller
// holds the lock.
func (t *TagMatch) compile() {
	t.resetLocked()
	t.num = 0
	t.re = nil

	cmp := t.normalizedComparison()

	switch {
	case t.field.IsDate() && cmp == DateWithin:
		t.num = parsePeriod(t.value)
	case t.field.IsDate():
		t.num = parseDate(t.value)
	case t.field.IsNumeric():
		t.num = parseNumber(t.value)
	case cmp == TextRegex:
		re, err := regexp.Compile("(?i)" + t.value)
		if err != nil {
			t.logger.Warn().Err(err).Str("pattern", t.value).Msg("invalid tag match pattern, nothing will match")
			return
		}

		t.re = re
	}
}

func parseNumber(v string) int64 {
	v = strings.TrimSpace(v)

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return 0
		}

		return int64(f)
	}

	return n
}

// parseDate accepts an ISO date or raw Unix seconds.
func parseDate(v string) int64 {
	v = strings.TrimSpace(v)

	if ts, err := time.Parse(isoDate, v); err == nil {
		return ts.Unix()
	}

	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return ts.Unix()
	}

	return parseNumber(v)
}

// parsePeriod reads "N days|months|years" into seconds. A bare number is
// already seconds.
func parsePeriod(v string) int64 {
	parts := strings.Fields(v)
	if len(parts) != 2 {
		return parseNumber(v)
	}

	n := parseNumber(parts[0]) * 60 * 60 * 24

	switch parts[1] {
	case "months":
		n *= 30
	case "years":
		n *= 365
	}

	return n
}

// formatPeriod writes whole days as "N days" and anything else as seconds.
func formatPeriod(secs int64) string {
	const day = 60 * 60 * 24
	if secs%day != 0 {
		return strconv.FormatInt(secs, 10)
	}

	return fmt.Sprintf("%d days", secs/day)
}

// formatDate writes a day when the instant is midnight UTC, else RFC3339.
func formatDate(secs int64) string {
	ts := time.Unix(secs, 0).UTC()
	if ts.Truncate(24*time.Hour).Equal(ts) {
		return ts.Format(isoDate)
	}

	return ts.Format(time.RFC3339)
}

// Attributes returns the persisted form.
func (t *TagMatch) Attributes() Attributes {
	t.mu.Lock()
	defer t.mu.Unlock()

	value := t.value

	cmp := t.normalizedComparison()
	switch {
	case t.field.IsDate() && cmp == DateWithin:
		value = formatPeriod(t.num)
	case t.field.IsDate():
		value = formatDate(t.num)
	case t.field.IsNumeric():
		value = strconv.FormatInt(t.num, 10)
	}

	return Attributes{
		"field":      t.field.String(),
		"comparison": strconv.Itoa(cmp),
		"value":      value,
		"invert":     strconv.FormatBool(t.invert),
		"strictness": formatFloat(t.strictness),
	}
}

// Name describes the condition, e.g. `Match tag: not genre contains "jazz"`.
func (t *TagMatch) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	not := ""
	if t.invert {
		not = " not"
	}

	field := t.field.String()
	if t.field == playlist.FieldAny {
		field = "any"
	}

	return fmt.Sprintf("Match tag:%s %s %s %s", not, field, t.conditionString(), t.valueString())
}

func (t *TagMatch) conditionString() string {
	cmp := t.normalizedComparison()

	if t.field.IsNumeric() {
		switch cmp {
		case NumLess:
			if t.field.IsDate() {
				return "before"
			}

			return "less than"
		case NumGreater:
			if t.field.IsDate() {
				return "after"
			}

			return "greater than"
		case DateWithin:
			return "within the last"
		}

		if t.field.IsDate() {
			return "on"
		}

		return "equals"
	}

	return [...]string{"equals", "starts with", "ends with", "contains", "matches"}[cmp]
}

func (t *TagMatch) valueString() string {
	cmp := t.normalizedComparison()

	switch {
	case t.field == playlist.FieldRating:
		return fmt.Sprintf("%g stars", float64(t.num)/2)
	case t.field == playlist.FieldLength:
		return playlist.FormatLength(t.num)
	case t.field.IsDate() && cmp == DateWithin:
		return formatPeriod(t.num)
	case t.field.IsDate():
		return time.Unix(t.num, 0).UTC().Format(isoDate)
	case t.field.IsNumeric():
		return strconv.FormatInt(t.num, 10)
	}

	return strconv.Quote(t.value)
}

// quality returns the match quality of one track in [0,1]. The caller holds
// the lock.
func (t *TagMatch) quality(track *playlist.Track) float64 {
	var v float64

	switch {
	case t.field.IsNumeric():
		v = t.compareNumber(float64(track.Number(t.field)))
	case t.field == playlist.FieldLabel:
		for _, l := range track.Labels {
			if t.compareText(l) {
				v = 1
				break
			}
		}
	case t.field == playlist.FieldAny:
		for _, f := range playlist.TextFields {
			if f == playlist.FieldLabel {
				for _, l := range track.Labels {
					if t.compareText(l) {
						v = 1
					}
				}

				continue
			}

			if t.compareText(track.Text(f)) {
				v = 1
				break
			}
		}
	default:
		if t.compareText(track.Text(t.field)) {
			v = 1
		}
	}

	if t.invert {
		v = 1 - v
	}

	return v
}

func (t *TagMatch) compareText(s string) bool {
	switch t.normalizedComparison() {
	case TextRegex:
		return t.re != nil && t.re.MatchString(s)
	case TextEquals:
		return domain.MatchText(s, t.value, true, true)
	case TextStartsWith:
		return domain.MatchText(s, t.value, true, false)
	case TextEndsWith:
		return domain.MatchText(s, t.value, false, true)
	default:
		return domain.MatchText(s, t.value, false, false)
	}
}

func (t *TagMatch) compareNumber(x float64) float64 {
	target := float64(t.num)

	switch t.normalizedComparison() {
	case NumLess:
		if x < target {
			return 1
		}

		return t.fuzzy(x - target)
	case NumGreater:
		if x > target {
			return 1
		}

		return t.fuzzy(target - x)
	case DateWithin:
		since := float64(t.now().Unix()) - target
		if x > since {
			return 1
		}

		return t.fuzzy(since - x)
	}

	d := math.Abs(x - target)
	if d <= 0.001 || (target != 0 && d/math.Abs(target) < 0.01) {
		return 1
	}

	return t.fuzzy(d)
}

// fuzzy is the kernel exp(-d / (w·(1-strictness))); exact at strictness 1.
func (t *TagMatch) fuzzy(d float64) float64 {
	if t.strictness >= 1 {
		return 0
	}

	w := fieldWeights[t.field]
	if w == 0 {
		w = 1
	}

	return math.Exp(-d / (w * (1 - t.strictness)))
}

// rangeNum is how far query hints are widened for fuzzy matching.
func (t *TagMatch) rangeNum() int64 {
	return int64(3 * fieldWeights[t.field] * (1 - t.strictness))
}

// matches returns the memoised decision for one track. The caller holds the lock.
func (t *TagMatch) matches(track *playlist.Track) bool {
	if hit, ok := t.cache[track.Key()]; ok {
		return hit
	}

	v := t.quality(track)

	var pass bool

	switch {
	case v >= 1:
		pass = true
	case v <= 0:
		pass = false
	case t.rng != nil:
		pass = v > t.rng.Float64()
	default:
		pass = v > rand.Float64()
	}

	t.cache[track.Key()] = pass

	return pass
}

// WhatTracksMatch returns the per-track decisions.
func (t *TagMatch) WhatTracksMatch(tracks []playlist.Track) []bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]bool, len(tracks))
	for i := range tracks {
		out[i] = t.matches(&tracks[i])
	}

	return out
}

// MatchType groups TagMatch instances by field.
func (t *TagMatch) MatchType() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return (0 << 28) + int(t.field)
}

// Satisfaction is the fraction of passing tracks; empty is satisfied.
func (t *TagMatch) Satisfaction(tracks []playlist.Track) float64 {
	if len(tracks) == 0 {
		return 1
	}

	passing := 0

	for _, ok := range t.WhatTracksMatch(tracks) {
		if ok {
			passing++
		}
	}

	return clamp(float64(passing) / float64(len(tracks)))
}

// SuggestPlaylistSize has no opinion.
func (t *TagMatch) SuggestPlaylistSize() int { return 0 }

// InitQuery narrows the domain to tracks that could pass. Numeric ranges are
// widened by the fuzzy range; regular expressions give no hint.
func (t *TagMatch) InitQuery(b domain.FilterBuilder) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmp := t.normalizedComparison()

	if t.field.IsNumeric() {
		t.numericQuery(b, cmp)
		return
	}

	if cmp == TextRegex {
		return
	}

	begin := cmp == TextEquals || cmp == TextStartsWith
	end := cmp == TextEquals || cmp == TextEndsWith

	if t.field != playlist.FieldAny {
		if t.invert {
			b.ExcludeFilter(t.field, t.value, begin, end)
		} else {
			b.AddFilter(t.field, t.value, begin, end)
		}

		return
	}

	if t.invert {
		b.BeginAnd()
	} else {
		b.BeginOr()
	}

	for _, f := range playlist.TextFields {
		if t.invert {
			b.ExcludeFilter(f, t.value, begin, end)
		} else {
			b.AddFilter(f, t.value, begin, end)
		}
	}

	b.EndAndOr()
}

func (t *TagMatch) numericQuery(b domain.FilterBuilder, cmp int) {
	r := t.rangeNum()
	minValue := t.num - r
	maxValue := t.num + r

	switch cmp {
	case NumGreater:
		if t.invert {
			b.ExcludeNumberFilter(t.field, maxValue, domain.GreaterThan)
		} else {
			b.AddNumberFilter(t.field, minValue, domain.GreaterThan)
		}
	case NumLess:
		if t.invert {
			b.ExcludeNumberFilter(t.field, minValue, domain.LessThan)
		} else {
			b.AddNumberFilter(t.field, maxValue, domain.LessThan)
		}
	case DateWithin:
		now := t.now().Unix()
		if t.invert {
			b.ExcludeNumberFilter(t.field, now-minValue, domain.GreaterThan)
		} else {
			b.AddNumberFilter(t.field, now-maxValue, domain.GreaterThan)
		}
	default:
		// Equality also accepts values strictly within 1% of the target, so
		// the widest accepted integer offset is ceil(|num|/100)-1.
		band := t.num
		if band < 0 {
			band = -band
		}

		band = max(0, (band+99)/100-1)

		minValue -= band
		maxValue += band

		switch {
		case t.invert:
			// Only the exact value fails for certain.
			b.ExcludeNumberFilter(t.field, t.num, domain.Equals)
		case minValue == maxValue:
			b.AddNumberFilter(t.field, minValue, domain.Equals)
		default:
			b.BeginAnd()
			b.AddNumberFilter(t.field, minValue-1, domain.GreaterThan)
			b.AddNumberFilter(t.field, maxValue+1, domain.LessThan)
			b.EndAndOr()
		}
	}
}
