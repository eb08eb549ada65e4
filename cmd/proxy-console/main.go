package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/console"
	"github.com/turingarena/turingarena-sub002/internal/proxy"

	"github.com/chzyer/readline"
)

const defaultConfigPath = "configs/proxy_console.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	network := flag.String("network", "", "Override proxy network (unix, tcp)")
	address := flag.String("address", "", "Override driver address")
	timeout := flag.Duration("timeout", 10*time.Second, "Dial timeout")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(2)
	}
	if *network != "" {
		cfg.Proxy.Network = *network
	}
	if *address != "" {
		cfg.Proxy.Address = *address
	}
	if cfg.Proxy.Address == "" {
		fmt.Fprintln(os.Stderr, "driver address is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	client, err := proxy.Dial(ctx, cfg.Proxy)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "proxy> ",
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init readline failed: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	if err := console.New(client, rl, rl.Stdout()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "session ended: %v\n", err)
	}
}
