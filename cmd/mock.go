package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/yecs/internal/mockserver"
	"github.com/okian/yecs/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	mockAddr     string
	mockJitter   float64
	mockInterval time.Duration
)

var mockCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a mock authoritative score server for development",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		addr := cfg.MockAddr
		if mockAddr != "" {
			addr = mockAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := mockserver.New(
			mockserver.WithJitter(mockJitter),
			mockserver.WithPushInterval(mockInterval),
			mockserver.WithLogger(logger.Named("mockserver")),
		)
		return srv.Run(ctx, addr)
	},
}

func init() {
	mockCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (overrides mock_addr)")
	mockCmd.Flags().Float64Var(&mockJitter, "jitter", 3, "Maximum per-category drift on refresh, in points")
	mockCmd.Flags().DurationVar(&mockInterval, "push-interval", 0, "Push a drifted snapshot on this period (0 disables)")
	rootCmd.AddCommand(mockCmd)
}
