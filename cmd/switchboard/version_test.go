package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	origVersion, origCommit, origDate := Version, GitCommit, BuildDate
	defer func() { Version, GitCommit, BuildDate = origVersion, origCommit, origDate }()

	Version = "0.1.0-test"
	GitCommit = "abc123"
	BuildDate = "2026-10-19"

	var buf bytes.Buffer
	printVersion(&buf)

	for _, want := range []string{
		"Switchboard 0.1.0-test",
		"Git Commit: abc123",
		"Build Date: 2026-10-19",
		runtime.Version(),
		runtime.GOOS + "/" + runtime.GOARCH,
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output %q missing %q", buf.String(), want)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "status", "backends", "route", "audit", "bench", "validate", "version", "completion"}

	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("command %q not registered", name)
		}
	}
}
