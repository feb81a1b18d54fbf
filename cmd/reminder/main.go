// Binário isolado para o cron de lembretes (equivalente a `omnicare reminder`).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdnsystems/OmniCare-sub005/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := app.Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reminder:", err)
		os.Exit(1)
	}
	defer env.Close()
	if _, err := env.Migrate(ctx); err != nil {
		env.Log.Fatal().Err(err).Msg("migrations")
	}
	res, err := env.ReminderJob().Run(ctx)
	if err != nil {
		env.Log.Fatal().Err(err).Msg("reminder")
	}
	env.Log.Info().Str("date", res.Date.Format("2006-01-02")).Int("found", res.Found).
		Int("sent", res.Sent).Int("skipped", res.Skipped).Msg("reminders done")
}
