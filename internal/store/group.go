package store

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/scigolib/hnf/internal/core"
	"github.com/scigolib/hnf/internal/utils"
)

// link is one named child. A child loaded from a file is resolved to a
// group or dataset on first access.
type link struct {
	name    string
	addr    uint64
	group   *Group
	dataset *Dataset
}

func (l *link) resolved() bool {
	return l.group != nil || l.dataset != nil
}

// linkTable is the name index of a group loaded from a file. It is
// shared by every handle that opened the group through the same
// HeaderCache and is never mutated.
type linkTable struct {
	names []string
	addrs []uint64
	index map[string]int
}

func buildLinkTable(f *File, oh *core.ObjectHeader) (*linkTable, error) {
	t := &linkTable{index: make(map[string]int)}
	put := func(name string, addr uint64) {
		if _, dup := t.index[name]; dup {
			return
		}
		t.index[name] = len(t.names)
		t.names = append(t.names, name)
		t.addrs = append(t.addrs, addr)
	}

	if m := oh.Find(core.MsgSymbolTable); m != nil {
		stm, err := core.ParseSymbolTableMessage(m.Data)
		if err != nil {
			return nil, err
		}
		links, err := f.groupLinks(stm)
		if err != nil {
			return nil, utils.WrapError("symbol table", err)
		}
		for _, l := range links {
			put(l.Name, l.Address)
		}
		return t, nil
	}

	if m := oh.Find(core.MsgLinkInfo); m != nil {
		li, err := core.ParseLinkInfoMessage(m.Data)
		if err != nil {
			return nil, err
		}
		if li.Dense() {
			return nil, fmt.Errorf("%w: dense link storage", ErrUnsupported)
		}
	}
	for _, m := range oh.FindAll(core.MsgLinkMessage) {
		lm, err := core.ParseLinkMessage(m.Data)
		if err != nil {
			return nil, err
		}
		if lm.Type != core.LinkHard {
			continue
		}
		put(lm.Name, lm.Address)
	}
	return t, nil
}

// Group is a container of named groups and datasets. Link order is
// preserved: storage order for loaded groups, creation order for new
// links.
//
// A loaded group serves lookups from its shared link table and only
// copies it into links/index on the first modification.
//
// A Group is not safe for concurrent use.
type Group struct {
	attrSet

	file   *File
	table  *linkTable
	opened map[int]*link

	links []*link
	index map[string]int
}

// New returns an empty in-memory root group.
func New() *Group {
	return &Group{index: make(map[string]int)}
}

func loadGroup(f *File, obj *object) (*Group, error) {
	table, err := obj.linkTable(f)
	if err != nil {
		return nil, err
	}
	g := &Group{file: f, table: table}
	if err := g.attrSet.load(f, obj.oh); err != nil {
		return nil, err
	}
	return g, nil
}

// materialize replaces the shared link table by a private copy.
func (g *Group) materialize() {
	if g.table == nil {
		return
	}
	g.links = make([]*link, len(g.table.names))
	g.index = make(map[string]int, len(g.table.names))
	for i, name := range g.table.names {
		l := g.opened[i]
		if l == nil {
			l = &link{name: name, addr: g.table.addrs[i]}
		}
		g.links[i] = l
		g.index[name] = i
	}
	g.table = nil
	g.opened = nil
}

// members returns every link in order.
func (g *Group) members() []*link {
	g.materialize()
	return g.links
}

// entry returns the unresolved link for name.
func (g *Group) entry(name string) (*link, bool) {
	if g.table != nil {
		i, ok := g.table.index[name]
		if !ok {
			return nil, false
		}
		if l := g.opened[i]; l != nil {
			return l, true
		}
		if g.opened == nil {
			g.opened = make(map[int]*link)
		}
		l := &link{name: name, addr: g.table.addrs[i]}
		g.opened[i] = l
		return l, true
	}
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.links[i], true
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Names returns the child names in link order.
func (g *Group) Names() []string {
	if g.table != nil {
		return slices.Clone(g.table.names)
	}
	names := make([]string, len(g.links))
	for i, l := range g.links {
		names[i] = l.name
	}
	return names
}

// Len returns the number of children.
func (g *Group) Len() int {
	if g.table != nil {
		return len(g.table.names)
	}
	return len(g.links)
}

// Has reports whether a child with the given name exists.
func (g *Group) Has(name string) bool {
	if g.table != nil {
		_, ok := g.table.index[name]
		return ok
	}
	_, ok := g.index[name]
	return ok
}

func (g *Group) resolve(l *link) error {
	if l.resolved() {
		return nil
	}
	obj, err := g.file.object(l.addr)
	if err != nil {
		return fmt.Errorf("object %q: %w", l.name, err)
	}
	switch obj.oh.Type() {
	case core.ObjectTypeGroup:
		l.group, err = loadGroup(g.file, obj)
	case core.ObjectTypeDataset:
		l.dataset, err = loadDataset(g.file, obj.oh)
	default:
		return fmt.Errorf("%w: object %q has unknown type", ErrUnsupported, l.name)
	}
	if err != nil {
		return fmt.Errorf("object %q: %w", l.name, err)
	}
	return nil
}

func (g *Group) lookup(name string) (*link, error) {
	l, ok := g.entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := g.resolve(l); err != nil {
		return nil, err
	}
	return l, nil
}

// IsGroup reports whether the named child exists and is a group.
func (g *Group) IsGroup(name string) (bool, error) {
	if !g.Has(name) {
		return false, nil
	}
	l, err := g.lookup(name)
	if err != nil {
		return false, err
	}
	return l.group != nil, nil
}

// Group returns the named child group.
func (g *Group) Group(name string) (*Group, error) {
	l, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	if l.group == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotGroup, name)
	}
	return l.group, nil
}

// Dataset returns the named child dataset.
func (g *Group) Dataset(name string) (*Dataset, error) {
	l, err := g.lookup(name)
	if err != nil {
		return nil, err
	}
	if l.dataset == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotDataset, name)
	}
	return l.dataset, nil
}

// Path resolves a slash-separated path of groups below g.
func (g *Group) Path(path string) (*Group, error) {
	cur := g
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next, err := cur.Group(part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func (g *Group) add(l *link) error {
	if err := validName(l.name); err != nil {
		return err
	}
	if g.Has(l.name) {
		return fmt.Errorf("%w: %q", ErrExists, l.name)
	}
	g.materialize()
	if g.index == nil {
		g.index = make(map[string]int)
	}
	g.index[l.name] = len(g.links)
	g.links = append(g.links, l)
	return nil
}

// CreateGroup adds an empty child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	child := New()
	if err := g.add(&link{name: name, group: child}); err != nil {
		return nil, err
	}
	return child, nil
}

// LinkGroup adds child, typically built with New, under name.
func (g *Group) LinkGroup(name string, child *Group) error {
	if child == nil || child == g {
		return fmt.Errorf("%w: cannot link %q", ErrInvalidName, name)
	}
	return g.add(&link{name: name, group: child})
}

// ReplaceGroup links child under name. An existing link of that name is
// replaced in place, so the child keeps its position.
func (g *Group) ReplaceGroup(name string, child *Group) error {
	if !g.Has(name) {
		return g.LinkGroup(name, child)
	}
	if child == nil || child == g {
		return fmt.Errorf("%w: cannot link %q", ErrInvalidName, name)
	}
	g.materialize()
	g.links[g.index[name]] = &link{name: name, group: child}
	return nil
}

// Clone returns a shallow copy of g with its own links and attributes.
// Children are shared, so changing the copy's membership or attributes
// leaves g as it was.
func (g *Group) Clone() *Group {
	c := &Group{
		attrSet: attrSet{list: slices.Clone(g.attrSet.list)},
		file:    g.file,
		table:   g.table,
	}
	if g.table != nil {
		c.opened = make(map[int]*link, len(g.opened))
		for i, l := range g.opened {
			cp := *l
			c.opened[i] = &cp
		}
		return c
	}
	c.index = maps.Clone(g.index)
	if c.index == nil {
		c.index = make(map[string]int)
	}
	c.links = make([]*link, len(g.links))
	for i, l := range g.links {
		cp := *l
		c.links[i] = &cp
	}
	return c
}

// RequireGroup returns the named child group, creating it if absent.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if g.Has(name) {
		return g.Group(name)
	}
	return g.CreateGroup(name)
}

// CreateDataset links ds under name.
func (g *Group) CreateDataset(name string, ds *Dataset, opts ...DatasetOption) error {
	for _, opt := range opts {
		opt(ds)
	}
	return g.add(&link{name: name, dataset: ds})
}

// Delete unlinks the named child, reporting whether it existed. Its
// storage is dropped on the next save.
func (g *Group) Delete(name string) bool {
	if !g.Has(name) {
		return false
	}
	g.materialize()
	i, ok := g.index[name]
	if !ok {
		return false
	}
	g.links = append(g.links[:i], g.links[i+1:]...)
	delete(g.index, name)
	for j := i; j < len(g.links); j++ {
		g.index[g.links[j].name] = j
	}
	return true
}
