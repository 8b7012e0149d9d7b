// Package admin implements the optional operator console: an SSH server,
// authenticated against the operator's own authorized_keys, serving a
// bubbletea view of the running kernel's session state, install history,
// and process health, with a huh-gated interrupt action.
package admin

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	wishlogging "github.com/charmbracelet/wish/logging"
	"github.com/charmbracelet/wish/bubbletea"

	"swiftkernel/kernel"
	"swiftkernel/kpaths"
	"swiftkernel/logging"
	"swiftkernel/store"
)

// Server is the admin console's SSH listener.
type Server struct {
	addr       string
	kernel     *kernel.Kernel
	store      *store.Store
	wishServer *ssh.Server
}

// NewServer builds an admin console bound to addr (host:port), showing k's
// live state. st is kept on the Server; the console view does not read it.
func NewServer(addr string, k *kernel.Kernel, st *store.Store) (*Server, error) {
	s := &Server{addr: addr, kernel: k, store: st}

	sshDir := filepath.Join(kpaths.Home(), "ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		return nil, fmt.Errorf("create admin ssh directory: %w", err)
	}
	hostKeyPath := filepath.Join(sshDir, "id_ed25519")

	wishServer, err := wish.NewServer(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithPublicKeyAuth(publicKeyHandler),
		wish.WithMiddleware(
			bubbletea.Middleware(s.teaHandler),
			activeterm.Middleware(),
			wishlogging.Middleware(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create admin ssh server: %w", err)
	}
	s.wishServer = wishServer
	return s, nil
}

// Start listens until ctx is cancelled or a terminating signal arrives,
// then shuts the SSH server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logging.Logger.Info("starting admin console", "address", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.wishServer.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin console: %w", err)
	case <-sigCh:
	case <-ctx.Done():
	}

	logging.Logger.Info("shutting down admin console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.wishServer.Shutdown(shutdownCtx)
}
