package forest

import (
	"fmt"
	"path/filepath"

	"github.com/RocGit/appifi"
	"github.com/google/uuid"
)

// Node is a Directory or a File.
//
// Node methods mutate the tree and must only be called on the forest's
// serialized path, i.e. inside [Forest.Do] or from the forest itself.
type Node interface {
	UUID() uuid.UUID
	Name() string
	// Parent is nil for the root and for detached nodes.
	Parent() *Directory
	// AbsPath joins names from the root down to this node. It always reflects
	// the current name and position.
	AbsPath() string
	// Attach registers the node under parent and runs its setup.
	Attach(parent *Directory) error
	// Detach runs teardown and then unregisters the node from its parent.
	Detach()
	Update(x appifi.Xstat) error
	Pause() error
	Resume() error
	Paused() bool

	base() *node
}

type node struct {
	forest *Forest
	uuid   uuid.UUID
	name   string     // last path component; the absolute root path for the root
	parent *Directory // non-owning back-reference
}

func (n *node) UUID() uuid.UUID {
	return n.uuid
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Parent() *Directory {
	return n.parent
}

func (n *node) base() *node {
	return n
}

func (n *node) AbsPath() string {
	if n.parent == nil {
		return n.name
	}
	return filepath.Join(n.parent.AbsPath(), n.name)
}

// rooted reports whether walking parents ends at the forest root
func (n *node) rooted() bool {
	cur := n
	for cur.parent != nil {
		cur = &cur.parent.node
	}
	return cur == &n.forest.root.node
}

// link records parent and registers self in its children
func (n *node) link(self Node, parent *Directory) error {
	if n.parent != nil {
		return fmt.Errorf("%s is already attached under %s", n.name, n.parent.AbsPath())
	}
	if other, exists := parent.children[n.name]; exists && other != self {
		return fmt.Errorf("%w: %s in %s", ErrNameConflict, n.name, parent.AbsPath())
	}
	n.parent = parent
	parent.children[n.name] = self
	return nil
}

// unlink drops self from its parent's children and clears the back-reference.
// The children entry is only removed if it still points at self.
func (n *node) unlink(self Node) {
	if n.parent == nil {
		return
	}
	if n.parent.children[n.name] == self {
		delete(n.parent.children, n.name)
	}
	n.parent = nil
}

// rename changes the name and re-keys self in the parent's children.
func (n *node) rename(self Node, name string) error {
	if n.parent != nil {
		if other, exists := n.parent.children[name]; exists && other != self {
			return fmt.Errorf("%w: %s in %s", ErrNameConflict, name, n.parent.AbsPath())
		}
		if n.parent.children[n.name] == self {
			delete(n.parent.children, n.name)
		}
		n.parent.children[name] = self
	}
	n.name = name
	return nil
}

func checkXstat(n Node, x appifi.Xstat, kind appifi.Kind) error {
	if x.UUID != n.UUID() {
		return fmt.Errorf("%w: %s is %s, xstat has %s", ErrUUIDMismatch, n.Name(), n.UUID(), x.UUID)
	}
	if x.Kind != kind {
		return fmt.Errorf("%w: %s is a %s, xstat is a %s", ErrKindMismatch, n.Name(), kind, x.Kind)
	}
	return nil
}
