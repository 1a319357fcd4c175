package forest

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/RocGit/appifi"
	"github.com/RocGit/appifi/internal/metrics"
	"github.com/RocGit/appifi/internal/util"
	"github.com/google/uuid"
)

// Directory is a forest branch. It exclusively owns its children, keyed by name.
type Directory struct {
	node
	children map[string]Node
	paused   bool
}

var _ Node = (*Directory)(nil)

func newDirectory(fr *Forest, id uuid.UUID, name string) *Directory {
	return &Directory{
		node:     node{forest: fr, uuid: id, name: name},
		children: make(map[string]Node),
	}
}

// Child returns the child called name.
func (d *Directory) Child(name string) (Node, bool) {
	child, ok := d.children[name]
	return child, ok
}

// Children returns the children sorted by name.
func (d *Directory) Children() []Node {
	out := make([]Node, 0, len(d.children))
	for _, child := range d.children {
		out = append(out, child)
	}
	slices.SortFunc(out, func(a, b Node) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

func (d *Directory) Paused() bool {
	return d.paused
}

// Attach registers d under parent. Its own children arrive through Reconcile.
func (d *Directory) Attach(parent *Directory) error {
	if err := d.link(d, parent); err != nil {
		return err
	}
	d.paused = parent.paused
	return nil
}

// Detach tears down the subtree bottom-up, then unregisters d.
func (d *Directory) Detach() {
	for _, child := range d.Children() {
		child.Detach()
	}
	d.unlink(d)
}

// Update applies a fresh xstat for the same directory; only the name can
// change. A rename of an active directory pauses and resumes the subtree
// around it so jobs below restart against the new paths.
func (d *Directory) Update(x appifi.Xstat) error {
	if err := checkXstat(d, x, appifi.KindDirectory); err != nil {
		return err
	}
	if x.Name == d.name {
		return nil
	}
	if d.paused {
		return d.rename(d, x.Name)
	}
	if err := d.Pause(); err != nil {
		return err
	}
	renameErr := d.rename(d, x.Name)
	if err := d.Resume(); err != nil {
		return errors.Join(renameErr, err)
	}
	return renameErr
}

// Pause pauses every node below d.
func (d *Directory) Pause() error {
	if d.paused {
		return fmt.Errorf("pausing %s: %w", d.name, ErrAlreadyPaused)
	}
	d.paused = true
	for _, child := range d.children {
		if err := child.Pause(); err != nil && !errors.Is(err, ErrAlreadyPaused) {
			return err
		}
	}
	return nil
}

// Resume resumes every node below d.
func (d *Directory) Resume() error {
	if !d.paused {
		return fmt.Errorf("resuming %s: %w", d.name, ErrNotPaused)
	}
	d.paused = false
	for _, child := range d.children {
		if err := child.Resume(); err != nil && !errors.Is(err, ErrNotPaused) {
			return err
		}
	}
	return nil
}

// Reconcile diffs the children against a fresh listing of d. Children
// missing from the listing, or files whose tag is no longer definite, are
// detached; matching uuids are updated; new records are attached.
func (d *Directory) Reconcile(xstats []appifi.Xstat) error {
	logger := util.GetLogger("Directory.Reconcile")

	var errs []error
	incoming := make(map[uuid.UUID]appifi.Xstat, len(xstats))
	order := make([]uuid.UUID, 0, len(xstats))
	for _, x := range xstats {
		if x.Kind == appifi.KindFile && !x.Magic.Definite() {
			continue
		}
		if _, dup := incoming[x.UUID]; dup {
			errs = append(errs, fmt.Errorf("duplicate uuid %s in listing of %s", x.UUID, d.AbsPath()))
			continue
		}
		incoming[x.UUID] = x
		order = append(order, x.UUID)
	}

	existing := make(map[uuid.UUID]Node, len(d.children))
	removed := 0
	for _, child := range d.Children() {
		x, ok := incoming[child.UUID()]
		if !ok || x.Kind != kindOf(child) {
			child.Detach()
			removed++
			continue
		}
		existing[child.UUID()] = child
		if x.Name != child.Name() {
			// free the old name first so renames within d can swap names
			delete(d.children, child.Name())
		}
	}

	added, updated := 0, 0
	for _, id := range order {
		x := incoming[id]
		if child, ok := existing[id]; ok {
			if err := child.Update(x); err != nil {
				errs = append(errs, err)
				child.Detach()
				removed++
				continue
			}
			updated++
			continue
		}
		child, err := d.forest.newNode(x)
		if err == nil {
			err = child.Attach(d)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}

	logger.Debug().Str("path", d.AbsPath()).Int("added", added).Int("updated", updated).
		Int("removed", removed).Msg("Reconciled directory")
	return errors.Join(errs...)
}

// fileMissing is the notification from a child whose job found no content.
// The directory is rescanned so the listing decides whether f survives.
func (d *Directory) fileMissing(f *File, err error) {
	logger := util.GetLogger("Directory")
	metrics.RecordFileMissing()
	logger.Warn().Err(err).Str("file", f.name).Str("dir", d.AbsPath()).Msg("File missing")
	d.forest.scheduleRefresh(d)
}

func kindOf(n Node) appifi.Kind {
	if _, ok := n.(*Directory); ok {
		return appifi.KindDirectory
	}
	return appifi.KindFile
}
