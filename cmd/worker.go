/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hostel-inventory/apiserver/config"
	"github.com/hostel-inventory/apiserver/internal/db"
	"github.com/hostel-inventory/apiserver/internal/mail"
	"github.com/hostel-inventory/apiserver/internal/mq"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var purgeInterval time.Duration

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Delivers queued email and purges expired sessions",
	Long: `Consumes the email queue and relays each message over SMTP. When
sessions are kept in postgres it also deletes expired rows periodically.

	hostel worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeInterval <= 0 {
			return fmt.Errorf("--purge-interval must be positive, got %s", purgeInterval)
		}
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mail queue: %w", err)
		}
		defer queue.Close()

		if cfg.Session.Backend == "" || cfg.Session.Backend == "postgres" {
			dbConn, err := db.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer dbConn.Close()
			go purgeSessions(ctx, store.NewSessionStore(dbConn), purgeInterval)
		}

		worker := mail.NewWorker(queue, cfg.MQ.EmailQueue, mail.NewSMTPSender(cfg.Mail))
		if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mail worker: %w", err)
		}
		return nil
	},
}

type sessionPurger interface {
	Purge(ctx context.Context) (int64, error)
}

func purgeSessions(ctx context.Context, sessions sessionPurger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.Purge(ctx)
			if err != nil {
				slog.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired sessions", "count", n)
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().DurationVar(&purgeInterval, "purge-interval", time.Hour, "How often expired sessions are deleted")
}
