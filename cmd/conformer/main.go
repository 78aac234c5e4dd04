// conformer checks HTTP JSON API contracts and browser UI journeys.
//
// Usage:
//
//	conformer run --offline
//	conformer run --config suite.yaml --tag api --db history.db
//	conformer validate suite.yaml
//	conformer history --db history.db
//	conformer serve --addr 127.0.0.1:8080
//
// Exit codes: 0 all scenarios passed, 1 a scenario failed, 2 command error.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/conformer/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	code := cli.GetExitCode(err)
	if err != nil {
		fmt.Fprintf(stderr, "conformer: %v\n", err)
	}
	return code
}
