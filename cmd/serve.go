package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/benignx/nfs-mirror/cfg"
	"github.com/benignx/nfs-mirror/internal/nfsd"
	"github.com/benignx/nfs-mirror/internal/nfsvfs"
)

// serve builds the virtual filesystem and NFSv3 listener for conf, handles
// the daemon re-exec if requested, and blocks serving connections.
func serve(conf cfg.Config) error {
	if conf.Server.Daemon && !isBackgroundProcess() {
		return daemonizeSelf()
	}

	if conf.Server.Daemon {
		if err := writePIDFile(conf.Server.PIDFile); err != nil {
			signalDaemonOutcome(err)
			return err
		}
		defer removePIDFile(conf.Server.PIDFile)
	}

	vfs, err := buildVFS(conf)
	if err != nil {
		if conf.Server.Daemon {
			signalDaemonOutcome(err)
		}
		return err
	}

	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", conf.Server.IP, conf.Server.Port))
	if err != nil {
		err = fmt.Errorf("listening on %s:%d: %w", conf.Server.IP, conf.Server.Port, err)
		if conf.Server.Daemon {
			signalDaemonOutcome(err)
		}
		return err
	}
	defer l.Close()

	limited := newLimitedListener(l, conf.Server.MaxConnections,
		time.Duration(conf.Server.ReadTimeout)*time.Second,
		time.Duration(conf.Server.WriteTimeout)*time.Second)

	if conf.Server.Daemon {
		signalDaemonOutcome(nil)
	}

	shutdownCtx, cancelShutdownWait := context.WithCancel(context.Background())
	defer cancelShutdownWait()
	go waitForShutdownSignal(shutdownCtx, joinShutdownFuncs(limited.Close))

	err = nfsd.Serve(limited, vfs)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func buildVFS(conf cfg.Config) (*nfsvfs.VFS, error) {
	mounts := make([]nfsvfs.Mount, 0, len(conf.Mounts))
	for _, m := range conf.Mounts {
		mounts = append(mounts, nfsvfs.Mount{
			Target:   m.Target,
			Source:   m.Source,
			ReadOnly: m.ReadOnly,
		})
	}
	return nfsvfs.New(mounts, conf.Server.ReadOnly), nil
}

// limitedListener caps the number of simultaneously-accepted connections at
// maxConnections via a weighted semaphore -- the same library gcsfuse
// itself uses (golang.org/x/sync/semaphore) to bound concurrent work --
// and applies conf's read/write timeouts to every accepted connection.
type limitedListener struct {
	net.Listener
	sem          *semaphore.Weighted
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newLimitedListener(l net.Listener, maxConnections int, readTimeout, writeTimeout time.Duration) net.Listener {
	if maxConnections <= 0 {
		maxConnections = 1
	}
	return &limitedListener{
		Listener:     l,
		sem:          semaphore.NewWeighted(int64(maxConnections)),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (l *limitedListener) Accept() (net.Conn, error) {
	if err := l.sem.Acquire(context.Background(), 1); err != nil {
		return nil, err
	}
	conn, err := l.Listener.Accept()
	if err != nil {
		l.sem.Release(1)
		return nil, err
	}
	return &timeoutConn{Conn: conn, sem: l.sem, readTimeout: l.readTimeout, writeTimeout: l.writeTimeout}, nil
}

// timeoutConn releases its listener's semaphore slot on Close and applies a
// fresh read/write deadline before each call, the way an http.Server applies
// ReadTimeout/WriteTimeout per request.
type timeoutConn struct {
	net.Conn
	sem          *semaphore.Weighted
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu       sync.Mutex
	released bool
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.Conn.Read(p)
}

func (c *timeoutConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.Conn.Write(p)
}

func (c *timeoutConn) Close() error {
	c.mu.Lock()
	if !c.released {
		c.sem.Release(1)
		c.released = true
	}
	c.mu.Unlock()
	return c.Conn.Close()
}

var _ net.Listener = (*limitedListener)(nil)
var _ net.Conn = (*timeoutConn)(nil)
