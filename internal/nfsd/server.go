package nfsd

import (
	"net"

	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"

	"github.com/benignx/nfs-mirror/internal/logger"
	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// DefaultHandleCacheSize bounds the number of file handles
// nfshelper.CachingHandler keeps resident, mirroring the 1024 entries
// u-root-sidecore's srvNFS wires its own CachingHandler with.
const DefaultHandleCacheSize = 1024

// Serve accepts connections on l and serves NFSv3 over them, exporting
// vfs's namespace, until l is closed or Accept fails.
func Serve(l net.Listener, vfs *nfsvfs.VFS) error {
	handler := NewHandler(vfs)
	cached := nfshelper.NewCachingHandler(handler, DefaultHandleCacheSize)
	logger.Infof("nfsd: serving NFSv3 on %s", l.Addr())
	return nfs.Serve(l, cached)
}
