package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/auth"
	"github.com/PopAlexandra2004/furryfriends/internal/chat"
	"github.com/PopAlexandra2004/furryfriends/internal/config"
	"github.com/PopAlexandra2004/furryfriends/internal/database"
	"github.com/PopAlexandra2004/furryfriends/internal/directory"
	"github.com/PopAlexandra2004/furryfriends/internal/interest"
	"github.com/PopAlexandra2004/furryfriends/internal/logging"
	"github.com/PopAlexandra2004/furryfriends/internal/playdate"
	"github.com/PopAlexandra2004/furryfriends/internal/server"
	"github.com/PopAlexandra2004/furryfriends/internal/session"
	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "furryfriends-api",
		Short: "FurryFriends matchmaking backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("redis-url", defaults.GetString("redis.url"), "Redis URL for refresh sessions")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().Int("refresh-ttl-hours", defaults.GetInt("session.refresh_ttl_hours"), "Refresh session TTL in hours")
	cmd.PersistentFlags().String("owner-access-code", defaults.GetString("owner.access_code"), "Owner role verification code")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "redis.url", "redis-url")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "session.refresh_ttl_hours", "refresh-ttl-hours")
	bindFlag(cmd, "owner.access_code", "owner-access-code")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	documentStore, err := store.NewStore(store.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	sessionStore, err := session.NewStore(appConfig.RedisURL, appConfig.RefreshTTL)
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "furryfriends-auth",
		Audience:      "furryfriends-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	directoryService, err := directory.NewService(directory.ServiceConfig{
		Store:     documentStore,
		Clock:     time.Now,
		Logger:    logger,
		OwnerCode: appConfig.OwnerCode,
	})
	if err != nil {
		return err
	}

	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:      documentStore,
		Clock:      time.Now,
		IDProvider: chat.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	playdateService, err := playdate.NewService(playdate.ServiceConfig{
		Store:  documentStore,
		Clock:  time.Now,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	interestService, err := interest.NewService(interest.ServiceConfig{
		Store:      documentStore,
		Chat:       chatService,
		IDProvider: chat.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	reminderPoller, err := playdate.NewReminderPoller(playdate.ReminderPollerConfig{
		Store:  documentStore,
		Logger: logger,
		Handler: func(username string, record playdate.Record) {
			logger.Info("playdate reminder due",
				zap.String("username", username),
				zap.String("date", record.Date),
				zap.String("time", record.Time),
				zap.String("location", record.Location))
		},
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Directory: directoryService,
		Chat:      chatService,
		Playdates: playdateService,
		Interests: interestService,
		Tokens:    tokenManager,
		Sessions:  sessionStore,
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reminderPoller.Run(signalCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
