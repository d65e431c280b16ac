package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/scigolib/hnf/internal/store"
)

// runTree prints the container layout below group: the superblock version,
// then every member with its attributes, dataset shapes and filters.
func runTree(w io.Writer, path, group string, depth int) error {
	f, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	sb := f.Superblock()
	fmt.Fprintf(w, "%s: superblock v%d, %d bytes\n", path, sb.Version, sb.EOFAddress)

	root, err := f.Root()
	if err != nil {
		return err
	}
	g, err := root.Path(group)
	if err != nil {
		return fmt.Errorf("group %q: %w", group, err)
	}
	name := "/" + strings.Trim(group, "/")
	fmt.Fprintln(w, name)
	return printGroup(w, g, 1, depth)
}

func printGroup(w io.Writer, g *store.Group, level, depth int) error {
	indent := strings.Repeat("  ", level)
	for _, a := range g.Attrs() {
		fmt.Fprintf(w, "%s@%s = %v\n", indent, a.Name, a.Value)
	}
	for _, name := range g.Names() {
		isGroup, err := g.IsGroup(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if isGroup {
			fmt.Fprintf(w, "%s%s/\n", indent, name)
			if depth > 0 && level >= depth {
				continue
			}
			child, err := g.Group(name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if err := printGroup(w, child, level+1, depth); err != nil {
				return fmt.Errorf("%s/%w", name, err)
			}
			continue
		}

		ds, err := g.Dataset(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(w, "%s%s %v %s", indent, name, ds.Shape(), ds.Datatype())
		if c := ds.Compression(); c.Codec != store.CodecNone {
			fmt.Fprintf(w, " [%s]", c.Codec)
		}
		fmt.Fprintln(w)
	}
	return nil
}
