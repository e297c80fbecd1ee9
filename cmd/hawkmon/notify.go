package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"hawkmon/internal/app"
	"hawkmon/internal/db"
	"hawkmon/internal/notifier"
)

func notifyTestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "notify-test",
		Short:        "Send a test message through every configured channel",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, "text", cfg.LogLevel)

			var repo *db.Repository
			if sqldb, err := db.Open(cfg.DBPath); err == nil {
				defer sqldb.Close()
				if err := db.Migrate(sqldb); err == nil {
					repo = db.NewRepository(sqldb)
				}
			}
			senders := []notifier.Sender{
				app.Email(cfg),
				app.Telegram(cfg, repo, logger),
				notifier.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Type),
			}
			var rec notifier.Recorder
			if repo != nil {
				rec = repo
			}
			d := notifier.NewDispatcher(senders, rec, logger)
			res := d.SendTest(cmd.Context(), "[HawkSysmon] Test notification", "HawkSysmon test alert: notification channel is working")
			if len(res) == 0 {
				return errors.New("no notification channel configured")
			}

			names := make([]string, 0, len(res))
			for n := range res {
				names = append(names, n)
			}
			sort.Strings(names)
			failed := 0
			for _, n := range names {
				if err := res[n]; err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%-10s FAILED  %v\n", n, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s ok\n", n)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d channels failed", failed, len(res))
			}
			return nil
		},
	}
}
