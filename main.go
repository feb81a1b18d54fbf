package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mdnsystems/OmniCare-sub005/internal/api"
	"github.com/mdnsystems/OmniCare-sub005/internal/app"
	"github.com/mdnsystems/OmniCare-sub005/internal/chat"
	"github.com/mdnsystems/OmniCare-sub005/internal/crypto"
	"github.com/mdnsystems/OmniCare-sub005/internal/logger"
	"github.com/mdnsystems/OmniCare-sub005/internal/middleware"
	"github.com/mdnsystems/OmniCare-sub005/internal/repo"
	"github.com/mdnsystems/OmniCare-sub005/internal/seed"
	"github.com/mdnsystems/OmniCare-sub005/internal/tenant"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "omnicare",
		Short:         "OmniCare: plataforma multi-clínica",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(billingCmd())
	rootCmd.AddCommand(reminderCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var skipMigrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sobe a API HTTP, o chat em tempo real e o sweep de inadimplência",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), !skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "não aplica migrações na subida")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica as migrações pendentes",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			n, err := env.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			env.Log.Info().Int("applied", n).Msg("migrations done")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Cria o super admin e as clínicas de demonstração (banco vazio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			if _, err := env.Migrate(cmd.Context()); err != nil {
				return err
			}
			return seed.Run(cmd.Context(), env.DB, logger.WithComponent(env.Log, "seed"))
		},
	}
}

func billingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Rotinas de cobrança",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Marca faturas vencidas e recalcula o nível de bloqueio de todas as clínicas",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			res, err := env.Sweeper(nil).Run(cmd.Context())
			if err != nil {
				return err
			}
			env.Log.Info().Int("clinics", res.Clinics).Int64("marked_overdue", res.MarkedOverdue).
				Int("changed", res.Changed).Int("failed", res.Failed).Msg("billing sweep done")
			return nil
		},
	})
	return cmd
}

func reminderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminder",
		Short: "Envia os lembretes de consulta por WhatsApp",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()
			res, err := env.ReminderJob().Run(cmd.Context())
			if err != nil {
				return err
			}
			env.Log.Info().Str("date", res.Date.Format("2006-01-02")).Int("found", res.Found).
				Int("sent", res.Sent).Int("skipped", res.Skipped).Msg("reminders done")
			return nil
		},
	}
}

func runServer(parent context.Context, runMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := app.Open(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	cfg, log := env.Cfg, env.Log

	if runMigrations {
		if _, err := env.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	keys, err := crypto.NewKeyring(cfg.DataEncryptionKeys, cfg.CurrentDataKeyVer)
	if err != nil {
		return fmt.Errorf("data encryption keys: %w", err)
	}
	log.Info().Str("data_key_version", keys.CurrentVersion()).Msg("encryption keyring loaded")

	resolver := tenant.NewResolver(func(ctx context.Context, id uuid.UUID) (*repo.Clinic, error) {
		return repo.ClinicByID(ctx, env.DB, id)
	}, cfg.TenantCacheTTL, logger.WithComponent(log, "tenant"))
	defer resolver.Close()

	mailer := env.Mailer()
	mailer.LogConfigSummary()
	sweeper := env.Sweeper(resolver.Invalidate)

	hub := chat.NewHub(logger.WithComponent(log, "chat"))
	chatSvc := &chat.Service{Store: chat.GormStore{DB: env.DB}, Hub: hub, Log: logger.WithComponent(log, "chat")}
	ws := chat.NewWSHandler(hub, chatSvc, cfg.CORSOrigins, logger.WithComponent(log, "chat"))

	h := &api.Handler{
		DB:      env.DB,
		Cfg:     cfg,
		Keys:    keys,
		Tenants: resolver,
		Billing: sweeper,
		Chat:    chatSvc,
		Mail:    mailer,
		Log:     logger.WithComponent(log, "api"),
	}
	r := api.NewRouter(h, ws)

	chain := middleware.RequestID(
		middleware.Logger(log)(
			middleware.Recover(log)(
				middleware.Timeout(cfg.RequestTimeoutSec)(
					middleware.CORS(cfg.CORSOrigins)(
						middleware.Compress(r))))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           chain,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("omnicare listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Loop(gctx, cfg.BillingSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
		return nil
	})
	err = g.Wait()
	log.Info().Msg("omnicare stopped")
	return err
}
