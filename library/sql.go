// ABOUTME: Compiles domain filter trees into parameterised SQLite WHERE clauses
// ABOUTME: Mirrors the in-memory matcher: case-insensitive text, labels via EXISTS

package library

import (
	"strconv"
	"strings"

	"playlist-generator/domain"
	"playlist-generator/playlist"
)

// columns maps fields to their tracks columns.
var columns = map[playlist.Field]string{
	playlist.FieldURL:         "t.url",
	playlist.FieldTitle:       "t.title",
	playlist.FieldArtist:      "t.artist",
	playlist.FieldAlbumArtist: "t.album_artist",
	playlist.FieldAlbum:       "t.album",
	playlist.FieldGenre:       "t.genre",
	playlist.FieldComposer:    "t.composer",
	playlist.FieldComment:     "t.comment",
	playlist.FieldYear:        "t.year",
	playlist.FieldLength:      "t.length_ms",
	playlist.FieldTrackNumber: "t.track_number",
	playlist.FieldDiscNumber:  "t.disc_number",
	playlist.FieldBitrate:     "t.bitrate",
	playlist.FieldFilesize:    "t.filesize",
	playlist.FieldRating:      "t.rating",
	playlist.FieldPlayCount:   "t.play_count",
	playlist.FieldFirstPlayed: "t.first_played",
	playlist.FieldLastPlayed:  "t.last_played",
	playlist.FieldCreateDate:  "t.create_date",
}

// compileFilter returns a WHERE expression and its arguments. A nil filter
// matches everything.
func compileFilter(f *domain.Filter) (string, []any) {
	var c compiler
	expr := c.expr(f)

	return expr, c.args
}

type compiler struct {
	args []any
}

func (c *compiler) expr(f *domain.Filter) string {
	if f == nil {
		return "1=1"
	}

	var e string

	switch f.Kind {
	case domain.KindAnd:
		e = c.join(f.Children, " AND ")
	case domain.KindOr:
		e = c.join(f.Children, " OR ")
	case domain.KindText:
		e = c.text(f)
	case domain.KindNumber:
		e = c.number(f)
	default:
		e = "1=1"
	}

	if f.Negate {
		return "NOT (" + e + ")"
	}

	return e
}

func (c *compiler) join(children []*domain.Filter, op string) string {
	if len(children) == 0 {
		return "1=1"
	}

	parts := make([]string, 0, len(children))
	for _, child := range children {
		parts = append(parts, c.expr(child))
	}

	return "(" + strings.Join(parts, op) + ")"
}

func (c *compiler) text(f *domain.Filter) string {
	if f.Field != playlist.FieldAny {
		return c.textField(f.Field, f)
	}

	parts := make([]string, 0, len(playlist.TextFields))
	for _, field := range playlist.TextFields {
		parts = append(parts, c.textField(field, f))
	}

	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c *compiler) textField(field playlist.Field, f *domain.Filter) string {
	c.args = append(c.args, likePattern(f.Text, f.Begin, f.End))

	if field == playlist.FieldLabel {
		return `EXISTS (SELECT 1 FROM labels l WHERE l.track_url = t.url AND LOWER(l.label) LIKE ? ESCAPE '\')`
	}

	col, ok := columns[field]
	if !ok {
		// Unknown fields read as empty text.
		col = "''"
	}

	if field.IsNumeric() {
		col = "CAST(" + col + " AS TEXT)"
	}

	return "LOWER(" + col + `) LIKE ? ESCAPE '\'`
}

func (c *compiler) number(f *domain.Filter) string {
	col, ok := columns[f.Field]
	if !ok || !f.Field.IsNumeric() {
		col = "0"
	}

	c.args = append(c.args, f.Value)

	switch f.Compare {
	case domain.GreaterThan:
		return col + " > ?"
	case domain.LessThan:
		return col + " < ?"
	default:
		return col + " = ?"
	}
}

// likePattern lower-cases text, escapes LIKE wildcards and anchors it.
func likePattern(text string, begin, end bool) string {
	var b strings.Builder

	if !begin {
		b.WriteByte('%')
	}

	for _, r := range strings.ToLower(text) {
		if r == '%' || r == '_' || r == '\\' {
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	if !end {
		b.WriteByte('%')
	}

	return b.String()
}

// describe renders compiled SQL with its arguments inlined, for logs and tests.
func describe(where string, args []any) string {
	var b strings.Builder

	i := 0

	for _, r := range where {
		if r == '?' && i < len(args) {
			switch v := args[i].(type) {
			case string:
				b.WriteString(strconv.Quote(v))
			case int64:
				b.WriteString(strconv.FormatInt(v, 10))
			}

			i++

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}
