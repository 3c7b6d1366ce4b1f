package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pbright/agent-arena-client/internal/api"
	"github.com/pbright/agent-arena-client/internal/config"
	"github.com/pbright/agent-arena-client/internal/history"
	"github.com/pbright/agent-arena-client/internal/provider"
	"github.com/pbright/agent-arena-client/internal/runner"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfgPath string
		verbose bool
	)

	root := &cobra.Command{
		Use:          "runner",
		Short:        "plays turn-based arena matches for an autonomous agent",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(playCmd(&cfgPath, &verbose))
	root.AddCommand(historyCmd(&cfgPath, &verbose))
	return root
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func playCmd(cfgPath *string, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "join the queue, play one match, print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log, err := newLogger(*verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			prov, err := provider.Build(cfg.Provider)
			if err != nil {
				return err
			}

			client := api.NewClient(cfg.ServerURL, cfg.AgentID, cfg.Token, log)
			r := runner.New(runner.Config{
				AgentID:          cfg.AgentID,
				QueueTimeout:     cfg.QueueTimeout(),
				QueueWaitTimeout: cfg.QueueWait(),
				PushOpenTimeout:  cfg.PushOpenTimeout(),
				PollInterval:     cfg.PollInterval(),
				ProviderDeadline: cfg.ProviderDeadline(),
				ActionCap:        cfg.ActionCap,
				DisableFallback:  cfg.DisableFallback,
			}, client, prov, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := r.Run(ctx)
			if err != nil {
				return err
			}

			if cfg.HistoryPath != "" {
				store, err := history.Open(cfg.HistoryPath)
				if err != nil {
					log.Warn("history store unavailable", zap.Error(err))
				} else {
					defer store.Close()
					if err := store.Record(ctx, res); err != nil {
						log.Warn("failed to record result", zap.Error(err))
					}
				}
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func historyCmd(cfgPath *string, verbose *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "list recorded match results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if cfg.HistoryPath == "" {
				return fmt.Errorf("history_path is not configured")
			}
			store, err := history.Open(cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s  %-10s %-6s winner=%s loser=%s reason=%s\n",
					e.RecordedAt.Format("2006-01-02 15:04:05"),
					e.MatchID, e.Transport, e.WinnerAgentID, e.LoserAgentID, e.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max results to show")
	return cmd
}
