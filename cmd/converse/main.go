package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dsemenov/converse/auth"
	"github.com/dsemenov/converse/hub"
	apiServer "github.com/dsemenov/converse/server/api"
	wsServer "github.com/dsemenov/converse/server/ws"
	"github.com/dsemenov/converse/service"
	"github.com/dsemenov/converse/storage/sqlite"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

type envConfig struct {
	DatabasePath string `envconfig:"DATABASE_PATH" default:"converse.db"`
	JWTSecret    string `envconfig:"JWT_SECRET" default:"converse-dev-secret"`
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	_ = godotenv.Load()
	var env envConfig
	if err = envconfig.Process("converse", &env); err != nil {
		logger.Fatal().Err(err).Msg("failed to read environment config")
	}

	store, err := sqlite.Open(env.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", env.DatabasePath).Msg("failed to open storage")
	}

	rooms := hub.New(hub.Config{Logger: &logger})
	svc := service.NewService(service.Config{
		Store:      store,
		Dispatcher: rooms,
		Logger:     &logger,
	})
	apiSrv := apiServer.NewServer(apiServer.Config{
		Logger:        &logger,
		ChatService:   svc,
		Authenticator: auth.New(env.JWTSecret, 0),
		ListenAddr:    *apiListenAddr,
	})
	wsSrv := wsServer.NewServer(wsServer.Config{
		Logger:     &logger,
		Hub:        rooms,
		ListenAddr: *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go apiSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
