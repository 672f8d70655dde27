// Package main runs a one-shot panel export.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	exportcmd "github.com/louisbranch/rewind/internal/cmd/export"
)

func main() {
	cfg, err := exportcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[EXPORT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := exportcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("export failed: %v", err)
	}
}
