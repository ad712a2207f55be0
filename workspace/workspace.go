// Package workspace models the directory or container a mission's turns
// execute in, and provides the uniform Host/Chroot command-spawn contract.
package workspace

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Type identifies how commands spawned in a Workspace execute.
type Type string

const (
	// Host executes commands directly on the host, in the workspace
	// directory.
	Host Type = "host"

	// Chroot executes commands inside a systemd-nspawn container rooted
	// at the workspace directory.
	Chroot Type = "chroot"
)

// Workspace is a directory (Host) or container root (Chroot) in which a
// mission's CLI backend runs.
type Workspace struct {
	ID   uuid.UUID
	Path string
	Type Type
}

// New creates a Workspace of the given type rooted at path.
func New(path string, typ Type) Workspace {
	return Workspace{ID: uuid.New(), Path: path, Type: typ}
}

// PathForEnv rewrites an absolute host path for use as an environment value
// visible to a process running inside this workspace. For Host workspaces
// the path is unchanged. For Chroot workspaces the workspace root prefix is
// stripped and the remainder re-rooted at "/", since paths inside the
// container are observed as rooted at "/".
func (w Workspace) PathForEnv(hostPath string) string {
	if w.Type != Chroot {
		return hostPath
	}
	root := filepath.Clean(w.Path)
	clean := filepath.Clean(hostPath)
	if !strings.HasPrefix(clean, root) {
		return clean
	}
	rel := strings.TrimPrefix(clean, root)
	if rel == "" {
		return "/"
	}
	if !strings.HasPrefix(rel, string(filepath.Separator)) {
		rel = string(filepath.Separator) + rel
	}
	return rel
}
