package cmd

import (
	"context"
	"fmt"
	"io"
	"net"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swiftkernel/admin"
	"swiftkernel/kernel"
	"swiftkernel/logging"
	"swiftkernel/protocol"
	"swiftkernel/store"
)

// RunCmd starts the kernel process against a Jupyter-supplied connection
// file.
type RunCmd struct {
	ConnectionFile string `arg:"" help:"Path to the Jupyter connection file"`
}

// Run implements the top-level orchestration: load configuration,
// bind the wire channels, launch the REPL, and serve shell/control requests
// until a shutdown_request arrives or the process receives a signal.
func (r *RunCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ci, err := protocol.LoadConnectionFile(r.ConnectionFile)
	if err != nil {
		return err
	}

	conns, hbListener, err := bindChannels(ci)
	if err != nil {
		return err
	}
	if hbListener != nil {
		go serveHeartbeat(hbListener)
	}
	transport := protocol.NewTCPTransport(conns)
	defer transport.Close()

	auditStore, err := store.Open(cli.settings.EffectiveAuditDBPath())
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer auditStore.Close()

	sessionID := uuid.New().String()
	k, err := kernel.New(cli.settings, auditStore, sessionID)
	if err != nil {
		return fmt.Errorf("initialize kernel: %w", err)
	}
	k.Start(ctx)
	defer k.Shutdown()

	sess := protocol.NewSession(sessionID, []byte(ci.Key), transport)
	adapter := kernel.NewAdapter(sess, k)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return adapter.Serve(gctx) })

	if cli.settings.AdminAddr != "" {
		g.Go(func() error {
			srv, err := admin.NewServer(cli.settings.AdminAddr, k, auditStore)
			if err != nil {
				return err
			}
			return srv.Start(gctx)
		})
	}

	g.Go(func() error {
		select {
		case restart := <-adapter.Shutdown():
			logging.Logger.Info("shutdown_request received", "restart", restart)
			stop()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

// bindChannels listens on each Jupyter channel's port and accepts exactly
// one connection, standing in for the ROUTER/PUB sockets a ZeroMQ transport
// would bind (protocol.TCPTransport's doc comment explains the substitution).
// The heartbeat port gets a bare echo listener rather than a Transport,
// since heartbeat carries no application messages.
func bindChannels(ci *protocol.ConnectionInfo) (map[protocol.Channel]net.Conn, net.Listener, error) {
	ports := map[protocol.Channel]int{
		protocol.ChannelShell:   ci.ShellPort,
		protocol.ChannelIOPub:   ci.IOPubPort,
		protocol.ChannelStdin:   ci.StdinPort,
		protocol.ChannelControl: ci.ControlPort,
	}

	conns := make(map[protocol.Channel]net.Conn, len(ports))
	for ch, port := range ports {
		conn, err := acceptOne(ci.IP, port)
		if err != nil {
			for _, c := range conns {
				c.Close()
			}
			return nil, nil, fmt.Errorf("bind %s channel: %w", ch, err)
		}
		conns[ch] = conn
	}

	hbLn, err := net.Listen("tcp", fmt.Sprintf("%s:%d", ci.IP, ci.HBPort))
	if err != nil {
		return conns, nil, fmt.Errorf("bind heartbeat channel: %w", err)
	}
	return conns, hbLn, nil
}

func acceptOne(ip string, port int) (net.Conn, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return nil, err
	}
	defer ln.Close()
	return ln.Accept()
}

// serveHeartbeat echoes every byte read back to the sender, the same
// liveness contract Jupyter's ZeroMQ REP heartbeat socket implements.
func serveHeartbeat(ln net.Listener) {
	defer ln.Close()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer c.Close()
			io.Copy(c, c)
		}(conn)
	}
}
