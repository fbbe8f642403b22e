package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/app"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/pipeline"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitUpstream = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, boot, err := app.Load(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if boot.Version {
		fmt.Fprintln(stdout, app.VersionString())
		return exitOK
	}
	setupLogging(cfg, stderr)

	if err := app.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitUsage
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("init app")
		return exitFailure
	}
	defer a.Close()

	if cfg.Serve {
		if err := a.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("server failed")
			return exitFailure
		}
		return exitOK
	}

	req, err := a.Request(stdin)
	if err != nil {
		log.Error().Err(err).Msg("build request")
		return exitUsage
	}
	start := time.Now()
	res, err := a.RunOnce(ctx, req, stdout)
	if err != nil {
		kind := pipeline.KindOf(err)
		log.Error().Err(err).Str("kind", string(kind)).Msg("transform failed")
		switch kind {
		case pipeline.KindInvalidRequest, pipeline.KindTemplateNotFound:
			return exitUsage
		case pipeline.KindUpstream:
			return exitUpstream
		}
		return exitFailure
	}
	log.Info().
		Str("provider", res.Provider).
		Int("tokens", res.TotalTokens).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("done")
	return exitOK
}

func setupLogging(cfg app.Config, stderr io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogJSON {
		log.Logger = zerolog.New(stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339})
	}
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
