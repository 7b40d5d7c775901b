package nfsmount

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// DefaultHandleCache is the number of file handles the server remembers.
const DefaultHandleCache = 4096

// ServerOptions configure NewServer.
type ServerOptions struct {
	// Addr is the listen address. Empty picks an ephemeral port on all
	// interfaces.
	Addr        string
	HandleCache int
	Logger      *slog.Logger
}

// Server is a running NFSv3 export of one filesystem.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
	logger   *slog.Logger
}

// NewServer starts serving fs in the background.
func NewServer(fs billy.Filesystem, opts ServerOptions) (*Server, error) {
	addr := opts.Addr
	if addr == "" {
		addr = ":0"
	}
	cache := opts.HandleCache
	if cache <= 0 {
		cache = DefaultHandleCache
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	s := &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
		done:     make(chan error, 1),
		logger:   logger,
	}

	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), cache)
	go func() {
		err := nfs.Serve(listener, handler)
		if err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("nfs server stopped", "error", err)
		}
		s.done <- err
	}()
	logger.Info("nfs server listening", "port", s.port)
	return s, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.port
}

// Close stops accepting connections and waits for the serve loop to exit.
func (s *Server) Close() error {
	err := s.listener.Close()
	<-s.done
	s.logger.Debug("nfs server closed", "port", s.port)
	return err
}

// mountArgs returns the mount(8) arguments for the local export on goos.
func mountArgs(goos string, port int, mountpoint string, writable bool) ([]string, error) {
	var opts string
	switch goos {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport", port, port)
		if !writable {
			opts += ",rdonly"
		}
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,local_lock=all,nolock", port, port)
		if !writable {
			opts += ",ro"
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return []string{"mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint}, nil
}

// Mount mounts the export on port at mountpoint. It runs mount through sudo.
func Mount(port int, mountpoint string, writable bool) error {
	args, err := mountArgs(runtime.GOOS, port, mountpoint, writable)
	if err != nil {
		return err
	}
	output, err := exec.Command("sudo", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount unmounts mountpoint.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		// User NFS mounts do not need sudo with diskutil.
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}
