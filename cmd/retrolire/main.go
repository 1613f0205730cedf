// Package main provides retrolire, a reading notes and bibliography manager
// over PostgreSQL with an interactive picker.
package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/retrolire/retrolire/internal/cli"
)

func main() {
	// SIGHUP arrives when the terminal closes under an open picker.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	code := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, envMap(os.Environ()), sigCh)

	signal.Stop(sigCh)
	os.Exit(code)
}

// envMap turns KEY=VALUE pairs into a map. Later duplicates win.
func envMap(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))

	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}

		env[k] = v
	}

	return env
}
