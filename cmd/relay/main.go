package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/allmeidain/adcombo-postback-notifier/internal/app/bootstrap"
)

func main() {
	var opts bootstrap.Options
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.StringVar(&opts.ConfigPath, "config", "configs/default.yaml", "path to the yaml config file (optional)")
	flagSet.StringVar(&opts.LogLevel, "log-level", "", "log level override: debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("parse flags: %v", err)
	}

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, opts)
	if err != nil {
		log.Fatalf("bootstrap api runtime: %v", err)
	}
	if err := runtime.RunAPI(ctx); err != nil {
		log.Fatalf("run api: %v", err)
	}
}
