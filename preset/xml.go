// ABOUTME: XML codec for presets: a titled constraint tree of groups and constraints
// ABOUTME: Reading is lenient, skipping unknown kinds and elements with a warning

package preset

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"playlist-generator/constraint"
)

// ErrNotPreset is returned when the document root is not a generator preset.
var ErrNotPreset = errors.New("not a generator preset")

// node is a generic XML element so unknown content survives decoding.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func (n *node) attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}

	return "", false
}

// Decode reads a preset document. Constraint kinds are resolved with reg.
func Decode(r io.Reader, reg *constraint.Registry, logger zerolog.Logger) (*Preset, error) {
	var doc node
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}

	if doc.XMLName.Local != "generatorpreset" {
		return nil, fmt.Errorf("%w: root element %q", ErrNotPreset, doc.XMLName.Local)
	}

	p := New("")
	if title, ok := doc.attr("title"); ok {
		p.Title = title
	}

	d := decoder{reg: reg, logger: logger}

	for i := range doc.Children {
		child := &doc.Children[i]

		switch child.XMLName.Local {
		case "title":
			// Older presets carry the title as a child element.
			if p.Title == "" {
				p.Title = strings.TrimSpace(child.Text)
			}
		case "constrainttree":
			if root := d.tree(child); root != nil {
				p.SetRoot(root)
			}
		default:
			logger.Warn().Str("element", child.XMLName.Local).Msg("skipping unknown preset element")
		}
	}

	return p, nil
}

type decoder struct {
	reg    *constraint.Registry
	logger zerolog.Logger
}

// tree returns the first group inside a constrainttree element.
func (d decoder) tree(n *node) *constraint.Group {
	for i := range n.Children {
		child := &n.Children[i]
		if child.XMLName.Local == "group" {
			return d.group(child)
		}

		d.logger.Warn().Str("element", child.XMLName.Local).Msg("constraint tree root must be a group, skipping")
	}

	return nil
}

func (d decoder) group(n *node) *constraint.Group {
	mt, _ := n.attr("matchtype")
	g := constraint.NewGroup(constraint.ParseMatch(mt))

	for i := range n.Children {
		child := &n.Children[i]

		switch child.XMLName.Local {
		case "group":
			g.Add(d.group(child))
		case "constraint":
			if c := d.constraint(child); c != nil {
				g.Add(c)
			}
		default:
			d.logger.Warn().Str("element", child.XMLName.Local).Msg("skipping unknown tree element")
		}
	}

	return g
}

func (d decoder) constraint(n *node) constraint.Constraint {
	kind, _ := n.attr("type")

	attrs := make(constraint.Attributes, len(n.Attrs))
	for _, a := range n.Attrs {
		if a.Name.Local != "type" {
			attrs[a.Name.Local] = a.Value
		}
	}

	c, err := d.reg.FromAttributes(kind, attrs)
	if err != nil {
		d.logger.Warn().Err(err).Str("type", kind).Msg("skipping constraint")
		return nil
	}

	if l, ok := c.(interface{ SetLogger(zerolog.Logger) }); ok {
		l.SetLogger(d.logger)
	}

	return c
}

// Encode writes the preset as indented XML. Attributes are sorted and
// internal constraints are left out.
func (p *Preset) Encode(w io.Writer) error {
	doc := node{
		XMLName: xml.Name{Local: "generatorpreset"},
		Attrs:   []xml.Attr{{Name: xml.Name{Local: "title"}, Value: p.Title}},
		Children: []node{{
			XMLName:  xml.Name{Local: "constrainttree"},
			Children: []node{encodeGroup(p.Root())},
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}

	return nil
}

func encodeGroup(g *constraint.Group) node {
	n := node{
		XMLName: xml.Name{Local: "group"},
		Attrs:   []xml.Attr{{Name: xml.Name{Local: "matchtype"}, Value: g.Match().String()}},
	}

	for _, child := range g.Children() {
		switch c := child.(type) {
		case *constraint.Group:
			n.Children = append(n.Children, encodeGroup(c))
		case *constraint.TrackSpreader:
			// internal, never saved
		case constraint.Constraint:
			n.Children = append(n.Children, encodeConstraint(c))
		}
	}

	return n
}

func encodeConstraint(c constraint.Constraint) node {
	attrs := c.Attributes()

	n := node{XMLName: xml.Name{Local: "constraint"}}
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: c.Kind()})

	for _, k := range attrs.Keys() {
		n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: k}, Value: attrs[k]})
	}

	return n
}

// Load reads a preset file.
func Load(path string, reg *constraint.Registry, logger zerolog.Logger) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open preset: %w", err)
	}
	defer func() { _ = f.Close() }()

	p, err := Decode(f, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	return p, nil
}

// Save writes the preset to path, replacing it atomically.
func (p *Preset) Save(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".preset-*.xml")
	if err != nil {
		return fmt.Errorf("create preset file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := p.Encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close preset file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace preset file: %w", err)
	}

	return nil
}
