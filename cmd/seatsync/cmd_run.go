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

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seatsync/seatsync/client"
	"github.com/seatsync/seatsync/internal/api"
	"github.com/seatsync/seatsync/internal/config"
	"github.com/seatsync/seatsync/internal/models"
	"github.com/seatsync/seatsync/internal/session"
	"github.com/seatsync/seatsync/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	var watch []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live session and serve the local state API",
		Long: "Connects to the push server, keeps seat maps, notifications and the offline queue " +
			"in sync, and serves them on the local state API until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, watch)
		},
	}

	cmd.Flags().StringSliceVar(&watch, "watch", nil, "Showtime IDs to watch from startup")
	return cmd
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

func runSession(ctx context.Context, watch []string) error {
	if err := applyProfileEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel)

	store, closer, err := session.OpenStore(ctx, cfg, profileName(), log)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck // best-effort on shutdown

	booking := client.New(cfg.APIURL,
		client.WithToken(cfg.Token.Value()),
		client.WithUserAgent("seatsync/"+config.Version),
	)

	sess, err := session.New(ctx, session.Options{
		PushURL: cfg.PushURL.Value(),
		Token:   cfg.Token.Value(),
		UserID:  models.ID(cfg.UserID),
		API:     booking,
		Store:   store,
		Dialer:  &ws.WebSocketDialer{Log: log},
		Backoff: ws.Backoff{
			Base:        cfg.ReconnectBase,
			Max:         cfg.ReconnectMax,
			MaxAttempts: cfg.MaxReconnectAttempts,
			Jitter:      ws.DefaultBackoff().Jitter,
		},
		LockTTL:          cfg.LockTTL,
		MaxNotifications: cfg.MaxNotifications,
		Log:              log,
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer sess.Close()

	if err := sess.Start(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	for _, id := range watch {
		if _, err := sess.WatchShowtime(ctx, models.ID(id)); err != nil {
			log.WithError(err).WithField("showtime", id).Warn("could not watch showtime")
		}
	}

	var storeHealth api.HealthChecker
	if hc, ok := closer.(api.HealthChecker); ok {
		storeHealth = hc
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(ctx, &api.RouterDeps{
			Log:           log,
			Status:        sess,
			Seats:         sess,
			Notifications: sess.Notifications,
			Queue:         sess.Queue,
			Rooms:         sess.Rooms,
			Connection:    sess,
			Events:        sess.Router,
			Store:         storeHealth,
			CORSOrigins:   cfg.CORSOrigins,
			Version:       config.Version,
			LocalAPIToken: cfg.LocalAPIToken.Value(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "storage": cfg.StorageBackend}).Info("local state API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("local state API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("session stopped")
	return err
}
