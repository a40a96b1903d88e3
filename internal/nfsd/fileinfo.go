// Package nfsd adapts internal/nfsvfs.VFS to the billy.Filesystem capability
// interface that github.com/willscott/go-nfs requires an export to
// implement, the way u-root-sidecore's fsCPIO adapts a cpio archive to the
// same interface for its own NFSv3 export.
package nfsd

import (
	"os"
	"time"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// attrFileInfo adapts an nfsvfs.Attributes to os.FileInfo, the way
// u-root-sidecore's fstat type adapts a cpio.Record to the same interface.
type attrFileInfo struct {
	name  string
	attrs nfsvfs.Attributes
}

func (fi attrFileInfo) Name() string       { return fi.name }
func (fi attrFileInfo) Size() int64        { return int64(fi.attrs.Size) }
func (fi attrFileInfo) ModTime() time.Time { return fi.attrs.Mtime }
func (fi attrFileInfo) IsDir() bool        { return fi.attrs.Type == nfsvfs.TypeDirectory }
func (fi attrFileInfo) Sys() any           { return fi.attrs }

func (fi attrFileInfo) Mode() os.FileMode {
	perm := os.FileMode(fi.attrs.Mode) & os.ModePerm
	switch fi.attrs.Type {
	case nfsvfs.TypeDirectory:
		return perm | os.ModeDir
	case nfsvfs.TypeSymlink:
		return perm | os.ModeSymlink
	case nfsvfs.TypeCharDevice:
		return perm | os.ModeDevice | os.ModeCharDevice
	case nfsvfs.TypeBlockDevice:
		return perm | os.ModeDevice
	case nfsvfs.TypeSocket:
		return perm | os.ModeSocket
	case nfsvfs.TypeFIFO:
		return perm | os.ModeNamedPipe
	default:
		return perm
	}
}

var _ os.FileInfo = attrFileInfo{}
