// Package schema holds the minimal internal model that stands in for the
// external YANG/XPath engine named in the specification. It is intentionally
// narrow: it models namespaces, modules, revisions, a tree of typed nodes,
// list keys, and mandatory/user-ordered flags — enough to implement sysrepod's
// validation and path-addressing rules without a full YANG compiler.
package schema

import (
	"strings"
	"sync"

	"github.com/sysrepo-go/sysrepod/srerr"
)

// Type is one of the scalar wire types a leaf can hold.
type Type int

const (
	TContainer Type = iota
	TList
	TString
	TBinary
	TEnum
	TBits
	TBool
	TEmpty
	TIdentityref
	TInstanceID
	TInt8
	TInt16
	TInt32
	TInt64
	TUint8
	TUint16
	TUint32
	TUint64
	TDecimal64
)

// Kind distinguishes structural roles in the schema tree, independent of the
// leaf scalar Type.
type Kind int

const (
	KindContainer Kind = iota
	KindList
	KindLeaf
	KindLeafList
	KindChoice
	KindCase
)

// Node describes one position in a module's schema tree.
type Node struct {
	Name        string
	Kind        Kind
	Type        Type
	Scale       uint8 // decimal64 fraction-digits
	Mandatory   bool
	UserOrdered bool
	Keys        []string // list key leaf names, in declared order
	Children    []*Node
	parent      *Node
}

func (n *Node) Child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Revision is one published revision of a module's schema tree.
type Revision struct {
	Date string
	Root *Node
}

// Module is a named, namespaced collection of schema revisions.
type Module struct {
	Name      string
	Namespace string
	Prefix    string
	Latest    string
	Revisions map[string]*Revision
}

func (m *Module) LatestRevision() *Revision {
	return m.Revisions[m.Latest]
}

// Context is the schema registry shared by every datastore. It is
// read-mostly: lookups happen on every operation, writes only on module
// install/uninstall.
type Context struct {
	mu      sync.RWMutex
	modules map[string]*Module
}

func NewContext() *Context {
	return &Context{modules: map[string]*Module{}}
}

// Install registers a module, replacing any existing module of the same
// name. Per spec.md's Data Manager contract, this is the only schema
// mutation the running engine performs.
func (c *Context) Install(m *Module) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[m.Name] = m
}

func (c *Context) Uninstall(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.modules, name)
}

func (c *Context) Module(name string) (*Module, *srerr.Error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[name]
	if !ok {
		return nil, srerr.New(srerr.UnknownModel, "module %q not installed", name)
	}
	return m, nil
}

// Modules returns a stable snapshot list of installed module names.
func (c *Context) Modules() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	return names
}

// Segment is one parsed element of a schema-aware path, e.g.
// "list[key='v']" splits into Name="list", Keys={"key":"v"}.
type Segment struct {
	Name string
	Keys map[string]string
}

// ParsePath splits a path of the form "/module:container/list[key='v']/leaf"
// into its module name and ordered segments. It implements only the single
// fixed addressing grammar spec.md names — no general XPath.
func ParsePath(path string) (module string, segs []Segment, err *srerr.Error) {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return "", nil, srerr.NewPath(srerr.InvalArg, path, "empty path")
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		name := part
		keys := map[string]string(nil)
		if idx := strings.IndexByte(part, '['); idx >= 0 {
			if !strings.HasSuffix(part, "]") {
				return "", nil, srerr.NewPath(srerr.BadElement, path, "malformed predicate in %q", part)
			}
			name = part[:idx]
			pred := part[idx+1 : len(part)-1]
			keys = map[string]string{}
			for _, kv := range strings.Split(pred, "][") {
				eq := strings.IndexByte(kv, '=')
				if eq < 0 {
					return "", nil, srerr.NewPath(srerr.BadElement, path, "malformed key predicate %q", kv)
				}
				k := strings.TrimSpace(kv[:eq])
				v := strings.Trim(strings.TrimSpace(kv[eq+1:]), "'\"")
				keys[k] = v
			}
		}
		if i == 0 {
			if colon := strings.IndexByte(name, ':'); colon >= 0 {
				module = name[:colon]
				name = name[colon+1:]
			} else {
				return "", nil, srerr.NewPath(srerr.BadElement, path, "first path segment must be module-qualified")
			}
		}
		segs = append(segs, Segment{Name: name, Keys: keys})
	}
	return module, segs, nil
}

// Resolve walks a module's schema tree along segs, returning the terminal
// node or an error if the path doesn't correspond to a declared schema
// position. segs[0] must name the revision's root node itself — the data
// tree's root is a synthetic node named after the module, one level above
// rev.Root, so the first real path segment addresses rev.Root rather than
// one of its children.
func (m *Module) Resolve(segs []Segment) (*Node, *srerr.Error) {
	rev := m.LatestRevision()
	if rev == nil {
		return nil, srerr.New(srerr.Internal, "module %q has no revisions", m.Name)
	}
	if len(segs) == 0 {
		return nil, srerr.NewPath(srerr.BadElement, "/"+m.Name+":", "empty path")
	}
	if segs[0].Name != rev.Root.Name {
		return nil, srerr.NewPath(srerr.BadElement, "/"+m.Name+":"+segs[0].Name,
			"no schema node %q at module %q root (expected %q)", segs[0].Name, m.Name, rev.Root.Name)
	}

	cur := rev.Root
	path := "/" + m.Name + ":" + rev.Root.Name
	for _, seg := range segs[1:] {
		failPath := path + "/" + seg.Name
		next := cur.Child(seg.Name)
		if next == nil {
			return nil, srerr.NewPath(srerr.BadElement, failPath, "no schema node %q under %q", seg.Name, cur.Name)
		}
		if next.Kind == KindList && len(seg.Keys) != len(next.Keys) {
			return nil, srerr.NewPath(srerr.BadElement, failPath, "list %q requires keys %v", seg.Name, next.Keys)
		}
		cur = next
		path = failPath
	}
	return cur, nil
}

// Cursor addresses one position in a data tree, letting CheckMandatory walk
// it in lockstep with a schema tree without this package importing package
// tree (so it can be unit tested against the schema alone).
type Cursor interface {
	// Child returns the cursor for the container/leaf named name directly
	// under this position, and whether it is present.
	Child(name string) (Cursor, bool)
	// ListInstances returns one cursor per instance of the list named name
	// directly under this position. Keyed instances have data-tree names
	// this package does not parse, so the data-tree side enumerates them.
	ListInstances(name string) []Cursor
}

// CheckMandatory recursively verifies that every mandatory descendant of
// node is present in the data tree position cur addresses, descending into
// every present container and every instance of every present list.
func CheckMandatory(node *Node, cur Cursor) *srerr.Error {
	for _, c := range node.Children {
		switch c.Kind {
		case KindList:
			for _, inst := range cur.ListInstances(c.Name) {
				if err := CheckMandatory(c, inst); err != nil {
					return err
				}
			}
		case KindContainer:
			child, ok := cur.Child(c.Name)
			if c.Mandatory && !ok {
				return srerr.NewPath(srerr.ValidationFailed, c.Name, "mandatory node %q missing", c.Name)
			}
			if ok {
				if err := CheckMandatory(c, child); err != nil {
					return err
				}
			}
		default:
			if c.Mandatory {
				if _, ok := cur.Child(c.Name); !ok {
					return srerr.NewPath(srerr.ValidationFailed, c.Name, "mandatory node %q missing", c.Name)
				}
			}
		}
	}
	return nil
}
