// Package main provides the entry point for the ledgerflow CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"fjacquet/ledgerflow/cmd/annotate"
	"fjacquet/ledgerflow/cmd/normalize"
	"fjacquet/ledgerflow/cmd/process"
	"fjacquet/ledgerflow/cmd/report"
	"fjacquet/ledgerflow/cmd/root"
	"fjacquet/ledgerflow/internal/config"
)

func init() {
	// Load .env before flags and config are read so its variables can override config keys
	config.LoadEnv()

	root.Init()

	root.Cmd.AddCommand(normalize.Cmd)
	root.Cmd.AddCommand(annotate.Cmd)
	root.Cmd.AddCommand(process.Cmd)
	root.Cmd.AddCommand(report.Cmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := root.Cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
