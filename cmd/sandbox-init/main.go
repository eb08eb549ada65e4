//go:build linux && cgo

// Command sandbox-init loads a seccomp profile and execs the submitted
// program in its place. The sandbox engine starts it with the program's
// pipes already attached:
//
//	sandbox-init -profile profile.json -- program args...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("sandbox-init", flag.ContinueOnError)
	profilePath := fs.String("profile", "", "Path to seccomp profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd := fs.Args()
	if len(cmd) == 0 {
		return fmt.Errorf("command is required")
	}
	if *profilePath == "" {
		return fmt.Errorf("seccomp profile is required")
	}

	profile, err := loadProfile(*profilePath)
	if err != nil {
		return err
	}
	// Resolve before the filter is loaded; the profile may deny the
	// syscalls LookPath needs.
	cmdPath, err := exec.LookPath(cmd[0])
	if err != nil {
		return fmt.Errorf("resolve command: %w", err)
	}
	if err := applySeccomp(profile); err != nil {
		return err
	}
	return unix.Exec(cmdPath, cmd, os.Environ())
}

type seccompConfig struct {
	DefaultAction string           `json:"defaultAction"`
	Syscalls      []seccompSyscall `json:"syscalls"`
}

type seccompSyscall struct {
	Names  []string `json:"names"`
	Action string   `json:"action"`
}

func loadProfile(path string) (seccompConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return seccompConfig{}, fmt.Errorf("read seccomp profile: %w", err)
	}
	var cfg seccompConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return seccompConfig{}, fmt.Errorf("parse seccomp profile: %w", err)
	}
	if _, err := parseSeccompAction(cfg.DefaultAction); err != nil {
		return seccompConfig{}, err
	}
	for _, rule := range cfg.Syscalls {
		if _, err := parseSeccompAction(rule.Action); err != nil {
			return seccompConfig{}, err
		}
		if len(rule.Names) == 0 {
			return seccompConfig{}, fmt.Errorf("seccomp rule %s has no syscalls", rule.Action)
		}
	}
	return cfg, nil
}

func applySeccomp(cfg seccompConfig) error {
	defaultAction, err := parseSeccompAction(cfg.DefaultAction)
	if err != nil {
		return err
	}
	filter, err := seccomp.NewFilter(defaultAction)
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	for _, rule := range cfg.Syscalls {
		action, err := parseSeccompAction(rule.Action)
		if err != nil {
			return err
		}
		for _, name := range rule.Names {
			call, err := seccomp.GetSyscallFromName(name)
			if err != nil {
				return fmt.Errorf("unknown syscall %s: %w", name, err)
			}
			if err := filter.AddRule(call, action); err != nil {
				return fmt.Errorf("add seccomp rule: %w", err)
			}
		}
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("set no new privs: %w", err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	return nil
}

func parseSeccompAction(action string) (seccomp.ScmpAction, error) {
	switch strings.ToUpper(action) {
	case "SCMP_ACT_ALLOW":
		return seccomp.ActAllow, nil
	case "SCMP_ACT_KILL", "SCMP_ACT_KILL_PROCESS":
		return seccomp.ActKillProcess, nil
	case "SCMP_ACT_ERRNO":
		return seccomp.ActErrno.SetReturnCode(int16(unix.EPERM)), nil
	default:
		return seccomp.ActKillProcess, fmt.Errorf("unsupported seccomp action: %s", action)
	}
}
