// Command marketops is the reference CLI for the governance gate: a
// thin wrapper over pkg/gate exposing precheck and gate as two
// subcommands, per SPEC_FULL.md §6.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes per SPEC_FULL.md §6.
const (
	exitAllowed          = 0
	exitDenied           = 1
	exitDeniedFailClosed = 2
	exitSystemError      = 3
)

func main() {
	app := &cli.App{
		Name:           "marketops",
		Usage:          "governance gate and evidence sealing engine",
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			precheckCommand(),
			gateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitSystemError)
	}
}

func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg := exitCoder.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "marketops: %v\n", err)
	os.Exit(exitSystemError)
}
