package dbcli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"fileindex/btree"
)

var levelColors = []color.Attribute{
	color.FgCyan,
	color.FgGreen,
	color.FgYellow,
	color.FgMagenta,
	color.FgBlue,
}

// RenderTree writes the nodes of tree one level per line, root first.
func RenderTree(w io.Writer, tree *btree.BTree, noColor bool) error {
	level := []*btree.Node{tree.Root()}
	for depth := 0; len(level) > 0; depth++ {
		c := color.New(levelColors[depth%len(levelColors)])
		if noColor {
			c.DisableColor()
		}

		parts := make([]string, 0, len(level))
		var next []*btree.Node
		for _, n := range level {
			keys := make([]string, len(n.Entries))
			for i, e := range n.Entries {
				keys[i] = e.Key
			}
			parts = append(parts, c.Sprint("["+strings.Join(keys, " ")+"]"))
			next = append(next, n.Children...)
		}

		if _, err := fmt.Fprintf(w, "level %d: %s\n", depth, strings.Join(parts, " ")); err != nil {
			return err
		}
		level = next
	}
	return nil
}
