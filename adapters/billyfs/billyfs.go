// Package billyfs adapts github.com/go-git/go-billy/v5's osfs to
// ports.FSTemp (spec §6), the same filesystem abstraction go-git itself
// uses for worktree and object-database access, rather than reaching
// for the standard library's os package directly for directory
// lifecycle management.
package billyfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/neuroglyph/git-mind-sub001/giterr"
	"github.com/neuroglyph/git-mind-sub001/ports"
)

// FSTemp implements ports.FSTemp over a billy.Filesystem rooted at a
// fixed base directory.
type FSTemp struct {
	fs     billy.Filesystem
	random ports.Random
}

// New builds an FSTemp rooted at baseDir. random, if non-nil, seeds the
// fallback random suffix MakeTempDir uses when the caller doesn't
// supply one.
func New(baseDir string, random ports.Random) *FSTemp {
	return &FSTemp{fs: osfs.New(baseDir), random: random}
}

// BaseDir implements ports.FSTemp.
func (f *FSTemp) BaseDir(base string, ensure bool) (string, error) {
	if ensure {
		if err := f.fs.MkdirAll(base, 0o755); err != nil {
			return "", giterr.Wrap(giterr.IoFailed, err, "create base directory")
		}
	} else if _, err := f.fs.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return "", giterr.New(giterr.NotFound, "base directory does not exist")
		}
		return "", giterr.Wrap(giterr.IoFailed, err, "stat base directory")
	}
	return filepath.Join(f.fs.Root(), base), nil
}

// MakeTempDir implements ports.FSTemp, returning an owned absolute path
// (spec §6 notes this drops the C API's shared-buffer invalidation
// hazard).
func (f *FSTemp) MakeTempDir(repoID, component, suffixRandom string) (string, error) {
	suffix := suffixRandom
	if suffix == "" {
		suffix = f.randomSuffix()
	}
	rel := filepath.Join(repoID, component+"-"+suffix)
	if err := f.fs.MkdirAll(rel, 0o755); err != nil {
		return "", giterr.Wrap(giterr.IoFailed, err, "create temp directory")
	}
	return filepath.Join(f.fs.Root(), rel), nil
}

func (f *FSTemp) randomSuffix() string {
	if f.random == nil {
		return "0"
	}
	return fmt.Sprintf("%08x", f.random.Uint32())
}

// RemoveTree implements ports.FSTemp.
func (f *FSTemp) RemoveTree(path string) error {
	rel, err := f.relativize(path)
	if err != nil {
		return err
	}
	if err := util.RemoveAll(f.fs, rel); err != nil {
		return giterr.Wrap(giterr.IoFailed, err, "remove tree")
	}
	return nil
}

// PathJoinUnderBase implements ports.FSTemp.
func (f *FSTemp) PathJoinUnderBase(base string, parts ...string) (string, error) {
	all := append([]string{base}, parts...)
	return filepath.Join(all...), nil
}

// CanonicalizeEx implements ports.FSTemp. PhysicalExisting on a missing
// path fails with giterr.NotFound, per spec §6.
func (f *FSTemp) CanonicalizeEx(path string, mode ports.CanonicalizeMode) (string, error) {
	switch mode {
	case ports.Logical:
		return filepath.Clean(path), nil
	case ports.PhysicalExisting:
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", giterr.Wrap(giterr.IoFailed, err, "resolve absolute path")
		}
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				return "", giterr.New(giterr.NotFound, "path does not exist")
			}
			return "", giterr.Wrap(giterr.IoFailed, err, "stat path")
		}
		resolved, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return "", giterr.Wrap(giterr.IoFailed, err, "resolve symlinks")
		}
		return resolved, nil
	case ports.PhysicalCreateOK:
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", giterr.Wrap(giterr.IoFailed, err, "resolve absolute path")
		}
		if _, err := os.Stat(abs); err == nil {
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				return resolved, nil
			}
		}
		return abs, nil
	default:
		return "", giterr.New(giterr.InvalidArgument, "unknown canonicalize mode")
	}
}

func (f *FSTemp) relativize(path string) (string, error) {
	root := f.fs.Root()
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", giterr.New(giterr.InvalidPath, "path escapes base directory")
	}
	return rel, nil
}
