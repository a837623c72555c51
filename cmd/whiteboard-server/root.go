package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"whiteboard-backend/internal/api"
	"whiteboard-backend/internal/api/router"
	"whiteboard-backend/internal/env"
	"whiteboard-backend/internal/logging"
	"whiteboard-backend/internal/queue"
	"whiteboard-backend/internal/store"
	"whiteboard-backend/internal/websocket"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "whiteboard-server",
		Short:         "Real-time collaborative whiteboard backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.Load(envFile)
			if err != nil {
				logrus.WithError(err).Error("invalid configuration")
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.Production())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				logrus.WithError(err).Error("server stopped with error")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&envFile, "env-file", "", "path to a .env file (default ./.env when present)")
	flags.String("port", "", "port to listen on (overrides "+env.Port+")")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides "+env.LogLevel+")")

	viper.BindPFlag(env.Port, flags.Lookup("port"))
	viper.BindPFlag(env.LogLevel, flags.Lookup("log-level"))

	return cmd
}

func run(ctx context.Context, cfg env.Config) error {
	log := logrus.WithField("component", "main")
	log.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"environment": cfg.AppEnv,
		"cors_origin": cfg.CORSOrigins,
	}).Info("starting whiteboard backend")

	roomStore := store.New()

	var hubOpts []websocket.HubOption
	if cfg.RedisURL != "" {
		publisher := websocket.NewRedisPublisher(cfg.RedisURL, cfg.RedisPass)
		defer publisher.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := publisher.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("redis mirror unreachable, frames will be dropped until it recovers")
		}
		cancel()
		hubOpts = append(hubOpts, websocket.WithPublisher(publisher))
		log.WithField("redis", cfg.RedisURL).Info("mirroring room broadcasts to redis")
	}

	hub := websocket.NewHub(hubOpts...)
	gateway := websocket.NewGateway(roomStore, hub)
	go hub.Run(ctx, gateway)

	if cfg.RoomIdleTTL > 0 {
		go roomStore.RunJanitor(ctx, janitorInterval(cfg.RoomIdleTTL), cfg.RoomIdleTTL)
	}

	queueManager := queue.NewRequestQueueManager(cfg.QueueSize, cfg.QueueWorkers)
	defer queueManager.Shutdown()

	server := api.NewAPIServer(api.ServerConfig{
		ListenAddr:     cfg.ListenAddr(),
		Queue:          queueManager,
		Store:          roomStore,
		Handler:        websocket.NewHandler(hub, cfg.CORSOrigins, cfg.SendBuffer),
		AllowedOrigins: cfg.CORSOrigins,
		Production:     cfg.Production(),
	},
		router.UtilsRoutes(""),
		router.WhiteboardRoutes("/api"),
		router.WebsocketRoutes("/ws"),
	)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("whiteboard-server: %w", err)
	}

	<-hub.Stopped()
	log.Info("server closed")
	return nil
}

// janitorInterval sweeps a few times per TTL without spinning on tiny values.
func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	return interval
}
