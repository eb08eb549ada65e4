package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/turingarena/turingarena-sub002/internal/cli/command"
	"github.com/turingarena/turingarena-sub002/internal/cli/config"
	httpclient "github.com/turingarena/turingarena-sub002/internal/cli/http"
	"github.com/turingarena/turingarena-sub002/internal/cli/repl"

	"github.com/google/shlex"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override base URL")
	timeout := flag.Duration("timeout", 0, "Override HTTP timeout (e.g. 10s)")
	pretty := flag.Bool("pretty", false, "Pretty print JSON response")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [<service> <action> key=value ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(2)
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	session := repl.New(client, command.Registry(), cfg.PrettyJSON != nil && *cfg.PrettyJSON, os.Stdin, os.Stdout)

	// Arguments run a single command instead of the REPL.
	if flag.NArg() > 0 {
		line := strings.Join(quoteArgs(flag.Args()), " ")
		if err := session.Exec(context.Background(), line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	session.Run(context.Background())
}

// quoteArgs re-quotes args that shlex would otherwise split.
func quoteArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if parts, err := shlex.Split(arg); err == nil && len(parts) == 1 && parts[0] == arg {
			out = append(out, arg)
			continue
		}
		out = append(out, "'"+strings.ReplaceAll(arg, "'", `'"'"'`)+"'")
	}
	return out
}
