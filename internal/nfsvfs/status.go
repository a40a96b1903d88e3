package nfsvfs

import (
	"errors"
	"io/fs"
)

// Status is the small NFSv3-shaped status enum returned by every VFS
// handler. It is distinct from whatever status type the external NFS
// wire-protocol library defines; internal/nfsd is the only place a Status
// is translated into that library's type.
type Status int

const (
	OK Status = iota
	ErrNoEnt
	ErrIO
	ErrAcces
	ErrExist
	ErrNotDir
	ErrIsDir
	ErrROFS
	ErrBadType
	ErrInval
	ErrNotEmpty
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case ErrNoEnt:
		return "NOENT"
	case ErrIO:
		return "IO"
	case ErrAcces:
		return "ACCES"
	case ErrExist:
		return "EXIST"
	case ErrNotDir:
		return "NOTDIR"
	case ErrIsDir:
		return "ISDIR"
	case ErrROFS:
		return "ROFS"
	case ErrBadType:
		return "BADTYPE"
	case ErrInval:
		return "INVAL"
	case ErrNotEmpty:
		return "NOTEMPTY"
	default:
		return "UNKNOWN"
	}
}

// translateHostError maps a host syscall/os error to a Status. Unrecognized
// errors degrade to ErrIO: nothing here is retried internally and nothing
// is invented beyond what the host told us.
func translateHostError(err error) Status {
	if err == nil {
		return OK
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNoEnt
	case errors.Is(err, fs.ErrPermission):
		return ErrAcces
	case errors.Is(err, fs.ErrExist):
		return ErrExist
	default:
		return ErrIO
	}
}
