// Package gitrepo adapts github.com/go-git/go-git/v5 to ports.Repository
// (spec §6). It is the concrete substrate every journal/cache/query
// operation ultimately runs against, built the way go-git's own
// plumbing/object and plumbing/storer packages are used internally:
// raw EncodedObject construction for blobs/trees/commits, and
// storer.ReferenceStorer.CheckAndSetReference for compare-and-set
// reference updates.
package gitrepo

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/oid"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// Repository implements ports.Repository over an open go-git repository.
type Repository struct {
	repo   *git.Repository
	gitDir string
}

// Open opens the repository rooted at path (a working tree, or a bare
// git directory).
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, giterr.Wrap(giterr.IoFailed, err, "open repository")
	}
	return &Repository{repo: repo, gitDir: path}, nil
}

func toHash(o oid.OID) plumbing.Hash { return plumbing.Hash(o) }
func fromHash(h plumbing.Hash) oid.OID { return oid.OID(h) }

// RepositoryPath implements ports.Repository.
func (r *Repository) RepositoryPath(kind string) (string, error) {
	switch kind {
	case "git_dir":
		return r.gitDir, nil
	case "work_dir":
		wt, err := r.repo.Worktree()
		if err != nil {
			return "", giterr.Wrap(giterr.IoFailed, err, "resolve worktree")
		}
		return wt.Filesystem.Root(), nil
	default:
		return "", giterr.New(giterr.InvalidArgument, "unknown repository path kind")
	}
}

// HeadBranch implements ports.Repository. It reads HEAD's symbolic
// target name directly rather than resolving it to a commit, so it
// works on a repository that has no commits yet (journal append is
// often the first write a fresh repository ever sees).
func (r *Repository) HeadBranch() (string, error) {
	ref, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", giterr.Wrap(giterr.IoFailed, err, "resolve HEAD")
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", giterr.New(giterr.InvalidState, "HEAD is not a symbolic reference")
	}
	name := ref.Target()
	if !name.IsBranch() {
		return "", giterr.New(giterr.InvalidState, "HEAD does not point at a branch")
	}
	return name.Short(), nil
}

// ReferenceTip implements ports.Repository.
func (r *Repository) ReferenceTip(refName string) (ports.ReferenceTip, error) {
	ref, err := r.repo.Reference(plumbing.ReferenceName(refName), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return ports.ReferenceTip{}, nil
		}
		return ports.ReferenceTip{}, giterr.Wrap(giterr.IoFailed, err, "resolve reference")
	}
	return r.tipFromRef(ref)
}

// ReferenceGlobLatest implements ports.Repository, scanning every
// reference matching pattern and returning the one whose commit is
// most recent.
func (r *Repository) ReferenceGlobLatest(pattern string) (ports.ReferenceTip, error) {
	iter, err := r.repo.Storer.IterReferences()
	if err != nil {
		return ports.ReferenceTip{}, giterr.Wrap(giterr.IoFailed, err, "iterate references")
	}
	defer iter.Close()

	var best ports.ReferenceTip
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		matched, matchErr := path.Match(pattern, ref.Name().String())
		if matchErr != nil || !matched {
			return nil
		}
		tip, tipErr := r.tipFromRef(ref)
		if tipErr != nil {
			return nil
		}
		if !best.HasTarget || tip.CommitTime.After(best.CommitTime) {
			best = tip
		}
		return nil
	})
	if err != nil {
		return ports.ReferenceTip{}, giterr.Wrap(giterr.IoFailed, err, "scan reference glob")
	}
	return best, nil
}

func (r *Repository) tipFromRef(ref *plumbing.Reference) (ports.ReferenceTip, error) {
	if ref.Hash().IsZero() {
		return ports.ReferenceTip{}, nil
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return ports.ReferenceTip{}, giterr.Wrap(giterr.IoFailed, err, "load reference commit")
	}
	return ports.ReferenceTip{
		HasTarget:  true,
		OID:        fromHash(ref.Hash()),
		OIDHex:     ref.Hash().String(),
		CommitTime: commit.Committer.When,
	}, nil
}

// CommitReadBlob implements ports.Repository.
func (r *Repository) CommitReadBlob(commit oid.OID, p string) (ports.BlobHandle, error) {
	c, err := r.repo.CommitObject(toHash(commit))
	if err != nil {
		return ports.BlobHandle{}, giterr.Wrap(giterr.NotFound, err, "load commit")
	}
	tree, err := c.Tree()
	if err != nil {
		return ports.BlobHandle{}, giterr.Wrap(giterr.IoFailed, err, "load commit tree")
	}
	file, err := tree.File(p)
	if err != nil {
		return ports.BlobHandle{}, giterr.Wrap(giterr.NotFound, err, "find blob in tree")
	}
	reader, err := file.Reader()
	if err != nil {
		return ports.BlobHandle{}, giterr.Wrap(giterr.IoFailed, err, "open blob reader")
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return ports.BlobHandle{}, giterr.Wrap(giterr.IoFailed, err, "read blob")
	}
	return ports.BlobHandle{Data: data, Close: func() {}}, nil
}

// CommitReadMessage implements ports.Repository.
func (r *Repository) CommitReadMessage(commit oid.OID) (string, error) {
	c, err := r.repo.CommitObject(toHash(commit))
	if err != nil {
		return "", giterr.Wrap(giterr.NotFound, err, "load commit")
	}
	return c.Message, nil
}

// WalkCommits implements ports.Repository, visiting commits in
// reverse-chronological (committer-time) order starting at refName's
// tip, following every parent of each commit. A non-nil visit error halts the walk and is returned verbatim.
func (r *Repository) WalkCommits(refName string, visit ports.CommitVisitor) error {
	ref, err := r.repo.Reference(plumbing.ReferenceName(refName), true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return giterr.New(giterr.NotFound, "reference not found")
		}
		return giterr.Wrap(giterr.IoFailed, err, "resolve reference")
	}

	iter, err := r.repo.Log(&git.LogOptions{From: ref.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return giterr.Wrap(giterr.IoFailed, err, "open commit log")
	}
	defer iter.Close()

	return iter.ForEach(func(c *object.Commit) error {
		return visit(fromHash(c.Hash))
	})
}

// CommitTreeSize implements ports.Repository, approximating the
// recursive byte sum from spec §4.I's Stats as the sum of blob sizes
// reachable from commit's tree (subtree object overhead is not
// included).
func (r *Repository) CommitTreeSize(commit oid.OID) (uint64, error) {
	c, err := r.repo.CommitObject(toHash(commit))
	if err != nil {
		return 0, giterr.Wrap(giterr.IoFailed, err, "load commit")
	}
	tree, err := c.Tree()
	if err != nil {
		return 0, giterr.Wrap(giterr.IoFailed, err, "load commit tree")
	}
	var total uint64
	files := tree.Files()
	defer files.Close()
	err = files.ForEach(func(f *object.File) error {
		total += uint64(f.Size)
		return nil
	})
	if err != nil {
		return 0, giterr.Wrap(giterr.IoFailed, err, "walk commit tree")
	}
	return total, nil
}

// CommitCreate implements ports.Repository. A zero spec.Tree is the
// sentinel for "use the repository's empty tree" (journal.Writer's
// commit carrier never needs its own tree).
func (r *Repository) CommitCreate(spec ports.CommitSpec) (oid.OID, error) {
	treeHash := toHash(spec.Tree)
	if spec.Tree.IsZero() {
		h, err := r.emptyTreeHash()
		if err != nil {
			return oid.Zero, err
		}
		treeHash = h
	}

	sig := object.Signature{Name: "git-mind", Email: "git-mind@localhost", When: time.Now()}
	parents := make([]plumbing.Hash, len(spec.Parents))
	for i, p := range spec.Parents {
		parents[i] = toHash(p)
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      spec.Message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return oid.Zero, giterr.Wrap(giterr.IoFailed, err, "encode commit")
	}
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return oid.Zero, giterr.Wrap(giterr.IoFailed, err, "store commit")
	}
	return fromHash(h), nil
}

func (r *Repository) emptyTreeHash() (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	tree := &object.Tree{}
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "encode empty tree")
	}
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "store empty tree")
	}
	return h, nil
}

// ReferenceUpdate implements ports.Repository's compare-and-set
// semantics via storer.ReferenceStorer.CheckAndSetReference.
func (r *Repository) ReferenceUpdate(update ports.ReferenceUpdate) error {
	name := plumbing.ReferenceName(update.RefName)
	target := plumbing.NewHashReference(name, toHash(update.Target))

	if update.Old == nil {
		if err := r.repo.Storer.SetReference(target); err != nil {
			return giterr.Wrap(giterr.IoFailed, err, "update reference")
		}
		return nil
	}

	oldHash := toHash(*update.Old)
	var old *plumbing.Reference
	if oldHash.IsZero() {
		old = plumbing.NewHashReference(name, plumbing.ZeroHash)
	} else {
		old = plumbing.NewHashReference(name, oldHash)
	}
	if err := r.repo.Storer.CheckAndSetReference(target, old); err != nil {
		return giterr.Wrap(giterr.AlreadyExists, err, "compare-and-set reference update")
	}
	return nil
}

// ResolveBlobAtHead implements ports.Repository.
func (r *Repository) ResolveBlobAtHead(p string) (oid.OID, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return oid.Zero, giterr.Wrap(giterr.IoFailed, err, "resolve HEAD")
	}
	return r.ResolveBlobAtCommit(fromHash(ref.Hash()), p)
}

// ResolveBlobAtCommit implements ports.Repository.
func (r *Repository) ResolveBlobAtCommit(commit oid.OID, p string) (oid.OID, error) {
	c, err := r.repo.CommitObject(toHash(commit))
	if err != nil {
		return oid.Zero, giterr.Wrap(giterr.NotFound, err, "load commit")
	}
	tree, err := c.Tree()
	if err != nil {
		return oid.Zero, giterr.Wrap(giterr.IoFailed, err, "load commit tree")
	}
	file, err := tree.File(p)
	if err != nil {
		return oid.Zero, giterr.Wrap(giterr.NotFound, err, "find blob in tree")
	}
	return fromHash(file.Hash), nil
}

// CommitParentCount implements ports.Repository.
func (r *Repository) CommitParentCount(commit oid.OID) (int, error) {
	c, err := r.repo.CommitObject(toHash(commit))
	if err != nil {
		return 0, giterr.Wrap(giterr.NotFound, err, "load commit")
	}
	return len(c.ParentHashes), nil
}

// BuildTreeFromDirectory implements ports.Repository by recursively
// encoding every file and subdirectory under root into git tree/blob
// objects, returning the root tree's OID.
func (r *Repository) BuildTreeFromDirectory(root string) (oid.OID, error) {
	h, err := r.buildTree(root)
	if err != nil {
		return oid.Zero, err
	}
	return fromHash(h), nil
}

func (r *Repository) buildTree(dir string) (plumbing.Hash, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "read directory")
	}

	treeEntries := make([]object.TreeEntry, 0, len(entries))
	for _, ent := range entries {
		childPath := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			h, err := r.buildTree(childPath)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			treeEntries = append(treeEntries, object.TreeEntry{Name: ent.Name(), Mode: filemode.Dir, Hash: h})
			continue
		}
		h, err := r.storeBlob(childPath)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		treeEntries = append(treeEntries, object.TreeEntry{Name: ent.Name(), Mode: filemode.Regular, Hash: h})
	}

	sortTreeEntries(treeEntries)

	obj := r.repo.Storer.NewEncodedObject()
	tree := &object.Tree{Entries: treeEntries}
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "encode tree")
	}
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "store tree")
	}
	return h, nil
}

func (r *Repository) storeBlob(path string) (plumbing.Hash, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "read file")
	}
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "open blob writer")
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "write blob")
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "close blob writer")
	}
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, giterr.Wrap(giterr.IoFailed, err, "store blob")
	}
	return h, nil
}

// sortTreeEntries orders entries the way git requires: byte-wise by
// name, treating a directory's name as if it carried a trailing slash.
func sortTreeEntries(entries []object.TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return treeSortKey(entries[i]) < treeSortKey(entries[j])
	})
}

func treeSortKey(e object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}
