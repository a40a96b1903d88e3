package nfsd

import (
	"io"
	"os"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// file is the billy.File handed back by Create/Open/OpenFile/TempFile. It
// tracks a read/write cursor of its own, the way os.File does, since
// billy.File exposes io.Reader/io.Writer/io.Seeker in addition to
// io.ReaderAt -- unlike u-root-sidecore's read-only cpio export (whose
// fileFail panics on anything but ReadAt, since go-nfs itself always sends
// an explicit offset), this export backs real, writable files and gains
// nothing by refusing the sequential methods.
type file struct {
	vfs  *nfsvfs.VFS
	id   nfsvfs.FileID
	name string

	mu     sync.Mutex
	offset int64
}

var _ billy.File = (*file)(nil)

func (f *file) Name() string { return f.name }

func (f *file) Read(p []byte) (int, error) {
	f.mu.Lock()
	off := f.offset
	f.mu.Unlock()

	n, err := f.ReadAt(p, off)

	f.mu.Lock()
	f.offset += int64(n)
	f.mu.Unlock()
	return n, err
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	data, eof, st := f.vfs.Read(f.id, uint64(off), uint32(len(p)))
	if st != nfsvfs.OK {
		return 0, statusError(st)
	}
	n := copy(p, data)
	if n < len(p) && eof {
		return n, io.EOF
	}
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	f.mu.Lock()
	off := f.offset
	f.mu.Unlock()

	if _, st := f.vfs.Write(f.id, uint64(off), p); st != nfsvfs.OK {
		return 0, statusError(st)
	}

	f.mu.Lock()
	f.offset += int64(len(p))
	f.mu.Unlock()
	return len(p), nil
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch whence {
	case io.SeekStart:
		f.offset = offset
	case io.SeekCurrent:
		f.offset += offset
	case io.SeekEnd:
		attrs, st := f.vfs.GetAttr(f.id)
		if st != nfsvfs.OK {
			return 0, statusError(st)
		}
		f.offset = int64(attrs.Size) + offset
	default:
		return 0, os.ErrInvalid
	}
	return f.offset, nil
}

func (f *file) Close() error { return nil }

// Lock and Unlock are no-ops: nfsvfs enforces consistency with its own
// coarse mutex and this export does not implement NLM-style advisory
// locking, matching the distilled spec's Non-goals around file locking.
func (f *file) Lock() error   { return nil }
func (f *file) Unlock() error { return nil }

func (f *file) Truncate(size int64) error {
	sz := uint64(size)
	_, st := f.vfs.SetAttr(f.id, nfsvfs.Sattr{Size: &sz})
	return statusError(st)
}
