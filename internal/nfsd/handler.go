package nfsd

import (
	"context"
	"net"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"

	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// Handler is the nfs.Handler backing a single export: the synthetic root
// composed from every configured mount. Unlike u-root-sidecore's
// NullAuthHandler, which gates Mount on a one-shot nonce matching a single
// forwarded directory, this handler exports the whole namespace under any
// dirpath a client asks for -- the mount-table composition already done by
// internal/nfsvfs (including its per-mount read-only policy) is itself the
// access-control surface, not the NFS MOUNT protocol.
type Handler struct {
	fs *Filesystem
}

// NewHandler returns an nfs.Handler exporting vfs's namespace.
func NewHandler(vfs *nfsvfs.VFS) *Handler {
	return &Handler{fs: NewFilesystem(vfs)}
}

var _ nfs.Handler = (*Handler)(nil)

func (h *Handler) Mount(ctx context.Context, conn net.Conn, req nfs.MountRequest) (nfs.MountStatus, billy.Filesystem, []nfs.AuthFlavor) {
	return nfs.MountStatusOk, h.fs, []nfs.AuthFlavor{nfs.AuthFlavorNull}
}

func (h *Handler) Change(fs billy.Filesystem) billy.Change {
	if c, ok := fs.(billy.Change); ok {
		return c
	}
	return nil
}

// FSStat reports filesystem-wide statistics. The distilled spec's Non-goals
// exclude quota/usage accounting, so this reports nothing rather than
// fabricating numbers the host filesystem never gave us.
func (h *Handler) FSStat(ctx context.Context, fs billy.Filesystem, stat *nfs.FSStat) error {
	return nil
}

// ToHandle and FromHandle are both overridden by nfshelper.CachingHandler,
// which every caller of this package wraps the handler in (see Serve); they
// are only reached if that wrapping is skipped, in which case returning an
// empty handle/persistent-path pair is the same degraded-but-safe behavior
// NullAuthHandler falls back to.
func (h *Handler) ToHandle(fs billy.Filesystem, path []string) []byte {
	return []byte{}
}

func (h *Handler) FromHandle(fh []byte) (billy.Filesystem, []string, error) {
	return nil, []string{}, nil
}

// HandleLimit reports no limit on the number of file handles this handler
// can track, deferring entirely to the CachingHandler wrapper's own cache
// size.
func (h *Handler) HandleLimit() int {
	return -1
}
