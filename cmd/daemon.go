package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jacobsa/daemonize"

	"github.com/benignx/nfs-mirror/internal/logger"
)

// backgroundEnvVar is set on the daemon child's environment so it can tell
// it is already the background process and should not re-daemonize,
// mirroring gcsfuse's logger.GCSFuseInBackgroundMode sentinel.
const backgroundEnvVar = "NFS_MIRROR_IN_BACKGROUND"

func isBackgroundProcess() bool {
	v, _ := os.LookupEnv(backgroundEnvVar)
	return v == "true"
}

// daemonizeSelf re-execs the current binary as a background daemon the way
// legacy_main.go's mount path does via daemonize.Run, then waits for the
// child to signal success or failure over the same stdout pipe.
func daemonizeSelf() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("finding executable: %w", err)
	}

	env := []string{
		fmt.Sprintf("PATH=%s", os.Getenv("PATH")),
		fmt.Sprintf("%s=true", backgroundEnvVar),
	}
	if wd, err := os.Getwd(); err == nil {
		env = append(env, fmt.Sprintf("NFS_MIRROR_PARENT_DIR=%s", wd))
	}

	if err := daemonize.Run(exe, os.Args[1:], env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	logger.Infof("nfs-mirror started in the background")
	return nil
}

// signalDaemonOutcome reports the background process's startup result to
// its waiting parent, absorbing the report error into a log line the way
// legacy_main.go's callDaemonizeSignalOutcome does.
func signalDaemonOutcome(err error) {
	if sigErr := daemonize.SignalOutcome(err); sigErr != nil {
		logger.Errorf("failed to signal outcome to parent process: %v", sigErr)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644)
}

func removePIDFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove pid file %q: %v", path, err)
	}
}
