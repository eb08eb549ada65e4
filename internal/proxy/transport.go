package proxy

import (
	"context"
	"net"
	"os"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// TransportConfig selects how the driver meets its evaluator.
type TransportConfig struct {
	// Network is "stdio", "unix", "tcp" or "ws". For "ws" the address is
	// host:port and the evaluator connects to ws://address/proxy.
	Network string `yaml:"network"`
	Address string `yaml:"address"`
}

// Accept waits for exactly one evaluator and returns the driver's Conn.
// With the stdio network the driver's own stdin/stdout carry the session.
func Accept(ctx context.Context, cfg TransportConfig) (*Conn, error) {
	switch cfg.Network {
	case "", "stdio":
		return NewPipeConn(os.Stdin, os.Stdout), nil
	case "unix", "tcp", "ws":
	default:
		return nil, errors.Newf(errors.InvalidParams, "unknown proxy network %q", cfg.Network)
	}

	if cfg.Network == "unix" {
		_ = os.Remove(cfg.Address)
	}
	network := cfg.Network
	if network == "ws" {
		network = "tcp"
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, network, cfg.Address)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ServiceUnavailable, "listen on %s %s", cfg.Network, cfg.Address)
	}
	defer ln.Close()
	if cfg.Network == "ws" {
		return acceptWebSocket(ctx, ln)
	}

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	nc, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), errors.Timeout)
		}
		return nil, errors.Wrapf(err, errors.ProxyStreamClosed, "accept evaluator")
	}
	return NewConn(nc), nil
}

// Dial connects an evaluator to a listening driver.
func Dial(ctx context.Context, cfg TransportConfig) (*Client, error) {
	if cfg.Network == "ws" {
		return dialWebSocket(ctx, cfg.Address)
	}
	var d net.Dialer
	nc, err := d.DialContext(ctx, cfg.Network, cfg.Address)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ServiceUnavailable, "dial %s %s", cfg.Network, cfg.Address)
	}
	return NewClient(nc), nil
}
