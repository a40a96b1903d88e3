package nfsd

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"
	"time"

	billy "github.com/go-git/go-billy/v5"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// Filesystem adapts an *nfsvfs.VFS to billy.Filesystem, the capability
// interface github.com/willscott/go-nfs requires of anything it exports.
// Every method below translates a slash-separated path into the fileid-based
// calls nfsvfs.VFS actually exposes.
type Filesystem struct {
	vfs *nfsvfs.VFS
}

// NewFilesystem returns a billy.Filesystem backed by vfs.
func NewFilesystem(vfs *nfsvfs.VFS) *Filesystem {
	return &Filesystem{vfs: vfs}
}

var (
	_ billy.Filesystem = (*Filesystem)(nil)
	_ billy.Change     = (*Filesystem)(nil)
)

func (fs *Filesystem) Join(elem ...string) string {
	return path.Join(elem...)
}

func (fs *Filesystem) Create(filename string) (billy.File, error) {
	dirID, base, err := resolveParent(fs.vfs, filename)
	if err != nil {
		return nil, err
	}
	id, _, st := fs.vfs.Create(dirID, []byte(base), 0644)
	if st != nfsvfs.OK {
		return nil, statusError(st)
	}
	return &file{vfs: fs.vfs, id: id, name: filename}, nil
}

func (fs *Filesystem) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *Filesystem) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	id, err := resolve(fs.vfs, filename)
	if err != nil {
		if err != os.ErrNotExist || flag&os.O_CREATE == 0 {
			return nil, err
		}
		dirID, base, perr := resolveParent(fs.vfs, filename)
		if perr != nil {
			return nil, perr
		}
		var st nfsvfs.Status
		if flag&os.O_EXCL != 0 {
			id, _, st = fs.vfs.CreateExclusive(dirID, []byte(base), uint32(perm))
		} else {
			id, _, st = fs.vfs.Create(dirID, []byte(base), uint32(perm))
		}
		if st != nfsvfs.OK {
			return nil, statusError(st)
		}
		return &file{vfs: fs.vfs, id: id, name: filename}, nil
	}

	if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
		return nil, os.ErrExist
	}

	if flag&os.O_TRUNC != 0 {
		var zero uint64
		if _, st := fs.vfs.SetAttr(id, nfsvfs.Sattr{Size: &zero}); st != nfsvfs.OK {
			return nil, statusError(st)
		}
	}

	f := &file{vfs: fs.vfs, id: id, name: filename}
	if flag&os.O_APPEND != 0 {
		if attrs, st := fs.vfs.GetAttr(id); st == nfsvfs.OK {
			f.offset = int64(attrs.Size)
		}
	}
	return f, nil
}

func (fs *Filesystem) Stat(filename string) (os.FileInfo, error) {
	id, err := resolve(fs.vfs, filename)
	if err != nil {
		return nil, err
	}
	attrs, st := fs.vfs.GetAttr(id)
	if st != nfsvfs.OK {
		return nil, statusError(st)
	}
	return attrFileInfo{name: path.Base(filename), attrs: attrs}, nil
}

func (fs *Filesystem) Lstat(filename string) (os.FileInfo, error) {
	return fs.Stat(filename)
}

func (fs *Filesystem) Rename(oldpath, newpath string) error {
	fromDir, fromName, err := resolveParent(fs.vfs, oldpath)
	if err != nil {
		return err
	}
	toDir, toName, err := resolveParent(fs.vfs, newpath)
	if err != nil {
		return err
	}
	return statusError(fs.vfs.Rename(fromDir, []byte(fromName), toDir, []byte(toName)))
}

func (fs *Filesystem) Remove(filename string) error {
	dirID, base, err := resolveParent(fs.vfs, filename)
	if err != nil {
		return err
	}
	return statusError(fs.vfs.Remove(dirID, []byte(base)))
}

func (fs *Filesystem) ReadDir(dirPath string) ([]os.FileInfo, error) {
	dirID, err := resolve(fs.vfs, dirPath)
	if err != nil {
		return nil, err
	}

	var out []os.FileInfo
	var cursor nfsvfs.FileID
	for {
		entries, end, st := fs.vfs.ReadDir(dirID, cursor, 4096)
		if st != nfsvfs.OK {
			return nil, statusError(st)
		}
		for _, e := range entries {
			out = append(out, attrFileInfo{name: string(e.Name), attrs: e.Attrs})
			cursor = e.ID
		}
		if end {
			break
		}
	}
	return out, nil
}

func (fs *Filesystem) MkdirAll(filename string, perm os.FileMode) error {
	ensureRootListed(fs.vfs)
	id := fs.vfs.RootDir()
	for _, comp := range splitComponents(filename) {
		next, st := fs.vfs.Lookup(id, []byte(comp))
		if st == nfsvfs.OK {
			id = next
			continue
		}
		childID, _, st := fs.vfs.Mkdir(id, []byte(comp), uint32(perm))
		if st != nfsvfs.OK && st != nfsvfs.ErrExist {
			return statusError(st)
		}
		if st == nfsvfs.ErrExist {
			childID, st = fs.vfs.Lookup(id, []byte(comp))
			if st != nfsvfs.OK {
				return statusError(st)
			}
		}
		id = childID
	}
	return nil
}

var tempFileCounter uint64

// TempFile creates a uniquely named file under dir with the given prefix,
// retrying on name collision the way os.CreateTemp does, but without
// math/rand: names are disambiguated by a monotonic in-process counter,
// which is enough to make concurrent TempFile calls from this process
// collision-free.
func (fs *Filesystem) TempFile(dir, prefix string) (billy.File, error) {
	dirID, err := resolve(fs.vfs, dir)
	if err != nil {
		return nil, err
	}

	for {
		n := atomic.AddUint64(&tempFileCounter, 1)
		name := fmt.Sprintf("%s%d", prefix, n)
		id, _, st := fs.vfs.CreateExclusive(dirID, []byte(name), 0600)
		if st == nfsvfs.ErrExist {
			continue
		}
		if st != nfsvfs.OK {
			return nil, statusError(st)
		}
		return &file{vfs: fs.vfs, id: id, name: fs.Join(dir, name)}, nil
	}
}

func (fs *Filesystem) Symlink(target, link string) error {
	dirID, base, err := resolveParent(fs.vfs, link)
	if err != nil {
		return err
	}
	_, _, st := fs.vfs.Symlink(dirID, []byte(base), target, 0777)
	return statusError(st)
}

func (fs *Filesystem) Readlink(link string) (string, error) {
	id, err := resolve(fs.vfs, link)
	if err != nil {
		return "", err
	}
	target, st := fs.vfs.Readlink(id)
	if st != nfsvfs.OK {
		return "", statusError(st)
	}
	return string(target), nil
}

// Chroot is deprecated on billy.Filesystem and this export does not need
// it: the synthetic namespace is already a single flat tree rooted at "/".
func (fs *Filesystem) Chroot(_ string) (billy.Filesystem, error) {
	return nil, os.ErrInvalid
}

func (fs *Filesystem) Root() string {
	return "/"
}

func (fs *Filesystem) Chmod(name string, mode os.FileMode) error {
	id, err := resolve(fs.vfs, name)
	if err != nil {
		return err
	}
	m := uint32(mode.Perm())
	_, st := fs.vfs.SetAttr(id, nfsvfs.Sattr{Mode: &m})
	return statusError(st)
}

func (fs *Filesystem) Lchown(name string, uid, gid int) error {
	return fs.Chown(name, uid, gid)
}

func (fs *Filesystem) Chown(name string, uid, gid int) error {
	id, err := resolve(fs.vfs, name)
	if err != nil {
		return err
	}
	u, g := uint32(uid), uint32(gid)
	_, st := fs.vfs.SetAttr(id, nfsvfs.Sattr{UID: &u, GID: &g})
	return statusError(st)
}

func (fs *Filesystem) Chtimes(name string, atime time.Time, mtime time.Time) error {
	id, err := resolve(fs.vfs, name)
	if err != nil {
		return err
	}
	_, st := fs.vfs.SetAttr(id, nfsvfs.Sattr{
		AtimeMode: nfsvfs.SetToClientTime,
		Atime:     atime,
		MtimeMode: nfsvfs.SetToClientTime,
		Mtime:     mtime,
	})
	return statusError(st)
}
