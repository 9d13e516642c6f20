// ABOUTME: Per-node satisfaction report for a finished playlist
// ABOUTME: Used to explain which constraints a generated playlist meets

package constraint

import (
	"fmt"
	"io"
	"strings"

	"playlist-generator/playlist"
)

// AuditEntry is the score of one node.
type AuditEntry struct {
	Depth        int
	Name         string
	Satisfaction float64
}

// Audit scores every node of the tree rooted at n against tracks.
func Audit(n Node, tracks []playlist.Track) []AuditEntry {
	var entries []AuditEntry

	visit := func(node Node, depth int) {
		entries = append(entries, AuditEntry{
			Depth:        depth,
			Name:         node.Name(),
			Satisfaction: node.Satisfaction(tracks),
		})
	}

	if g, ok := n.(*Group); ok {
		g.Walk(visit)
	} else {
		visit(n, 0)
	}

	return entries
}

// WriteAudit prints entries as an indented tree.
func WriteAudit(w io.Writer, entries []AuditEntry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s%-50s %5.1f%%\n", strings.Repeat("  ", e.Depth), e.Name, e.Satisfaction*100); err != nil {
			return fmt.Errorf("failed to write audit: %w", err)
		}
	}

	return nil
}
