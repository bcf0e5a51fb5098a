// Command portfolio tracks brokerage accounts live: it loads REST snapshots
// into the reconciliation ledger, streams quote updates over the venue's
// WebSocket protocol, and prints a consolidated summary on an interval.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-portfolio/internal/config"
	"github.com/rxtech-lab/argo-portfolio/internal/ledger"
	"github.com/rxtech-lab/argo-portfolio/internal/logger"
	"github.com/rxtech-lab/argo-portfolio/internal/transport"
	"github.com/rxtech-lab/argo-portfolio/internal/version"
	"github.com/rxtech-lab/argo-portfolio/pkg/streamer"
)

func trackAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	tokens := transport.StaticToken(cfg.API.AccessToken)
	rest := transport.NewRESTTransport(cfg.API.BaseURL, tokens)
	book := ledger.NewLedger(rest, cfg.Ledger.ToLedger(), log)

	if cfg.Ledger.SnapshotPath != "" {
		if err := book.LoadSnapshot(cfg.Ledger.SnapshotPath); err != nil {
			log.Warn("snapshot restore failed, starting fresh", zap.Error(err))
		}
	}

	for _, account := range cfg.Accounts {
		if err := book.AddAccount(ctx, account); err != nil {
			return err
		}
	}

	book.Start(ctx)
	defer book.Stop()

	supervisor, err := startStreaming(ctx, cfg, rest, book, log)
	if err != nil {
		return err
	}

	if supervisor != nil {
		defer supervisor.Stop()
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := cmd.Duration("summary-interval")
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	log.Info("portfolio tracker running",
		zap.String("run_id", uuid.NewString()),
		zap.Strings("accounts", cfg.Accounts),
		zap.Strings("symbols", cfg.Symbols),
		zap.Duration("summary_interval", interval))

	printSummary(runCtx, book)

	for {
		select {
		case <-runCtx.Done():
			log.Info("shutting down")

			if cfg.Ledger.SnapshotPath != "" {
				if err := book.SaveSnapshot(cfg.Ledger.SnapshotPath); err != nil {
					log.Error("final snapshot failed", zap.Error(err))
				}
			}

			return nil
		case <-ticker.C:
			printSummary(runCtx, book)
		}
	}
}

// startStreaming wires quote streaming into the ledger. With no symbols
// configured the portfolio runs on REST snapshots alone.
func startStreaming(ctx context.Context, cfg config.Config, rest *transport.RESTTransport, book *ledger.Ledger, log *logger.Logger) (*streamer.Supervisor, error) {
	if len(cfg.Symbols) == 0 {
		return nil, nil
	}

	pref, err := rest.GetUserPreference(ctx)
	if err != nil {
		return nil, err
	}

	info := streamer.StreamerInfo{
		SocketURL:     pref.StreamerSocketURL,
		CustomerID:    pref.CustomerID,
		CorrelationID: pref.CorrelationID,
		Channel:       pref.Channel,
		FunctionID:    pref.FunctionID,
	}

	tokens := streamer.StaticToken(cfg.API.AccessToken)

	supervisor := streamer.NewSupervisor(func() *streamer.Connection {
		return streamer.NewConnection(info, tokens, log)
	}, log)

	if err := supervisor.Start(ctx); err != nil {
		return nil, err
	}

	if err := supervisor.Subscribe(streamer.ServiceQuote, cfg.Symbols, nil, book.QuoteHandler()); err != nil {
		log.Warn("quote subscription deferred", zap.Error(err))
	}

	if err := supervisor.SetQOS(streamer.DefaultQOSLevel); err != nil {
		log.Warn("qos request deferred", zap.Error(err))
	}

	return supervisor, nil
}

func printSummary(ctx context.Context, book *ledger.Ledger) {
	summary := book.GetPortfolioSummary(ctx)

	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return
	}

	fmt.Println(string(payload))
}

func main() {
	cmd := &cli.Command{
		Name:    "portfolio",
		Usage:   "Track brokerage accounts with live streaming quotes",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "config.yaml",
			},
			&cli.DurationFlag{
				Name:    "summary-interval",
				Aliases: []string{"i"},
				Usage:   "How often to print the portfolio summary",
				Value:   30 * time.Second,
			},
		},
		Action: trackAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
