package main

import (
	"context"
	"fmt"
	"os"

	"hrloader/internal/config"
	dataloader "hrloader/internal/dataLoader"
	"hrloader/internal/logger"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Failures are logged by Run. The exit status stays 0 unless
	// --strict-exit asks otherwise.
	if _, err := dataloader.New(cfg, log).Run(context.Background()); err != nil && cfg.StrictExit {
		os.Exit(1)
	}
}
