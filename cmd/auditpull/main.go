package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/crimson-sun/auditpull/internal/checkpoint"
	"github.com/crimson-sun/auditpull/internal/config"
	"github.com/crimson-sun/auditpull/internal/connector"
	"github.com/crimson-sun/auditpull/internal/connector/httpclient"
	"github.com/crimson-sun/auditpull/internal/engine"
	"github.com/crimson-sun/auditpull/internal/logging"
	"github.com/crimson-sun/auditpull/internal/model"
	"github.com/crimson-sun/auditpull/internal/output/notice"
	"github.com/crimson-sun/auditpull/internal/output/stdout"
	"github.com/crimson-sun/auditpull/internal/pipeline"

	// Registers itself with the connector registry.
	"github.com/crimson-sun/auditpull/internal/connector/openai"
)

// rateBurst is the token bucket size paired with the configured rate limit.
const rateBurst = 5

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Warn("signal received, aborting run", "signal", sig.String())
		cancel()
	}()

	execute(ctx, os.Args, os.Stdout, os.Stderr)
	// Exit status is always 0; failures are reported as notices.
}

// execute runs the command line. out carries only NDJSON; help and usage
// text go to errOut.
func execute(ctx context.Context, args []string, out, errOut io.Writer) {
	if err := newCommand(out, errOut).Run(ctx, args); err != nil {
		// Flag errors never reach the run; report them on the stream anyway.
		reporter := notice.New(out, model.RunInfo{ID: uuid.NewString(), Provider: openai.Provider})
		_ = reporter.Error(fmt.Sprintf("invalid arguments: %v", err))
	}
}

func newCommand(out, errOut io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "auditpull",
		Usage:     "fetch new organization audit-log events and print them as NDJSON",
		Writer:    errOut,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "unread",
				Aliases: []string{"u"},
				Usage:   "replay from the checkpoint without updating it",
			},
			&cli.IntFlag{
				Name:    "offset",
				Aliases: []string{"o"},
				Value:   24,
				Usage:   "lookback in hours when no valid checkpoint exists",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			offset := cmd.Int("offset")
			if offset < 0 {
				return fmt.Errorf("offset must be >= 0 hours, got %d", offset)
			}
			run(ctx, out, time.Duration(offset)*time.Hour, cmd.Bool("unread"))
			return nil
		},
	}
}

// run performs one extraction. Every outcome is reported on out.
func run(ctx context.Context, out io.Writer, lookback time.Duration, unread bool) {
	info := model.RunInfo{ID: uuid.NewString(), Provider: openai.Provider, StartedAt: time.Now()}
	reporter := notice.New(out, info)

	cfg, cfgErr := config.Load()
	closer := logging.Init(logging.Options{Level: logging.ParseLevel(cfg.Log.Level), File: cfg.Log.File})
	defer closer.Close()

	if cfg.Connector.Provider != "" {
		info.Provider = cfg.Connector.Provider
	}
	reporter.SetRun(info)
	if cfgErr != nil {
		slog.Error("config load failed", "file", cfg.File, "error", cfgErr)
		_ = reporter.Error(fmt.Sprintf("config load failed: %v", cfgErr))
		return
	}
	info.OrgID = cfg.Connector.OrgID
	reporter.SetRun(info)

	ctor, err := connector.Get(cfg.Connector.Provider)
	if err != nil {
		_ = reporter.Error(err.Error())
		return
	}

	store, err := openStore(cfg.Checkpoint)
	if err != nil {
		slog.Error("checkpoint store unavailable", "backend", cfg.Checkpoint.Backend, "error", err)
		_ = reporter.Error(fmt.Sprintf("checkpoint store unavailable: %v", err))
		return
	}

	p := pipeline.New(ctor(), engine.New(), store, stdout.New(out), reporter, pipeline.Options{
		Run: info,
		Connector: connector.ConnectorConfig{
			Provider: cfg.Connector.Provider,
			APIKey:   cfg.Connector.APIKey,
			OrgID:    cfg.Connector.OrgID,
			Endpoint: cfg.Connector.Endpoint,
			ClientOptions: []httpclient.Option{
				httpclient.WithTimeout(cfg.Connector.Timeout),
				httpclient.WithMaxRetries(cfg.Connector.MaxRetries),
				httpclient.WithRateLimit(cfg.Connector.RateLimit, rateBurst),
			},
		},
		CheckpointKey: cfg.Checkpoint.Key,
		Lookback:      lookback,
		Unread:        unread,
		ArtifactDir:   cfg.Output.ArtifactDir,
		KeepArtifact:  cfg.Output.KeepArtifact,
	})
	defer func() {
		if err := p.Close(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}()

	slog.Info("auditpull starting",
		"provider", cfg.Connector.Provider,
		"checkpoint", cfg.Checkpoint.Backend,
		"state", cfg.Checkpoint.Path,
		"unread", unread,
	)
	res, _ := p.Run(ctx)
	slog.Debug("run result", "state", res.State.String(), "events", res.Events, "committed", res.Committed)
}

func openStore(cfg config.CheckpointConfig) (checkpoint.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return checkpoint.NewSQLiteStore(cfg.Path)
	default:
		return checkpoint.NewFileStore(cfg.Path), nil
	}
}
