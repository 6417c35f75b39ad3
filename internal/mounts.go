// Package internal provides abstracted filemounts to use as fs.FS
// filesystems in the program. A mount serves either an embedded filesystem
// or, when a directory path is given, that directory on disk, which is how
// development mode serves editable templates and static files.
package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileMount is a mount that may be backed by either an embedded fs.FS or a
// directory path.
type FileMount struct {
	MountName string
	fs.FS
}

// NewFileMount takes an embedded fs.FS or a path to a directory. If dirPath
// is "", the embedded fs is used, sub-mounted at mountName so that it works
// like an os.DirFS rooted at the same level; otherwise the directory is
// used directly.
func NewFileMount(mountName string, embeddedFS fs.FS, dirPath string) (*FileMount, error) {

	if mountName == "" {
		return nil, errors.New("no mount name provided for new file mount")
	}
	if !fs.ValidPath(mountName) {
		return nil, fmt.Errorf("mount name %q is not a valid fs.ValidPath path", mountName)
	}

	if dirPath == "" {
		subFS, err := fs.Sub(embeddedFS, mountName)
		if err != nil {
			return nil, fmt.Errorf("could not sub-mount embedded fs at %q: %v", mountName, err)
		}
		return &FileMount{mountName, subFS}, nil
	}

	s, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("new mount at %q error: %s", dirPath, err)
	}
	if !s.IsDir() {
		return nil, fmt.Errorf("new mount at %q is not a directory", dirPath)
	}
	return &FileMount{mountName, os.DirFS(dirPath)}, nil
}
