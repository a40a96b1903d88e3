package nfsvfs

import (
	"os"
	"syscall"
	"time"
)

// FileType is the NFSv3 file type of an Entry, projected from the host's
// os.FileMode.
type FileType int

const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
	TypeBlockDevice
	TypeCharDevice
	TypeSocket
	TypeFIFO
)

// Attributes is the NFSv3 fattr3 projection of a host stat result.
//
// Two Attributes "differ" per Differ below iff any of
// {Type, Size, Mtime, Ctime, Mode, UID, GID, Nlink} differs; that predicate,
// not struct equality, is the cache-invalidation test used throughout
// nfsvfs.
type Attributes struct {
	Type   FileType
	Mode   uint32
	UID    uint32
	GID    uint32
	Nlink  uint32
	Size   uint64
	Used   uint64
	Rdev   uint64
	FSID   uint64
	FileID uint64
	Atime  time.Time
	Mtime  time.Time
	Ctime  time.Time
}

// Differ reports whether a and b differ on any field the refresh engine
// treats as significant. FileID is deliberately excluded: the same host
// object observed under two different cached ids would otherwise always
// "differ", defeating the point of the comparison.
func Differ(a, b Attributes) bool {
	return a.Type != b.Type ||
		a.Size != b.Size ||
		!a.Mtime.Equal(b.Mtime) ||
		!a.Ctime.Equal(b.Ctime) ||
		a.Mode != b.Mode ||
		a.UID != b.UID ||
		a.GID != b.GID ||
		a.Nlink != b.Nlink
}

// ProjectAttributes builds an Attributes from a host os.FileInfo, the way
// rclone's local backend widens an os.FileInfo via its raw syscall.Stat_t
// for fields os.FileInfo does not expose (uid, gid, nlink, rdev, blocks).
// fsid is constant per mount and supplied by the caller; fileID is the
// fileid this projection is being stamped with.
func ProjectAttributes(fi os.FileInfo, fsid uint64, fileID uint64) Attributes {
	attr := Attributes{
		Mode:   uint32(fi.Mode().Perm()),
		Size:   uint64(fi.Size()),
		FSID:   fsid,
		FileID: fileID,
		Mtime:  fi.ModTime(),
	}

	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		attr.Type = TypeSymlink
	case fi.IsDir():
		attr.Type = TypeDirectory
	case fi.Mode()&os.ModeDevice != 0 && fi.Mode()&os.ModeCharDevice != 0:
		attr.Type = TypeCharDevice
	case fi.Mode()&os.ModeDevice != 0:
		attr.Type = TypeBlockDevice
	case fi.Mode()&os.ModeSocket != 0:
		attr.Type = TypeSocket
	case fi.Mode()&os.ModeNamedPipe != 0:
		attr.Type = TypeFIFO
	default:
		attr.Type = TypeRegular
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		attr.UID = st.Uid
		attr.GID = st.Gid
		attr.Nlink = uint32(st.Nlink)
		attr.Rdev = uint64(st.Rdev)
		attr.Used = uint64(st.Blocks) * 512
		attr.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		attr.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	} else {
		attr.Nlink = 1
		attr.Atime = fi.ModTime()
		attr.Ctime = fi.ModTime()
	}

	return attr
}
