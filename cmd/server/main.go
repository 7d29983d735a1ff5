package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"dmchat/internal/api"
	"dmchat/internal/chat"
	"dmchat/internal/config"
	"dmchat/internal/database"
	"dmchat/internal/server"
	"dmchat/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingKey     string
	imageDir       string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[dmchat] ", log.LstdFlags)

	env, err := config.LoadEnv()
	if err != nil {
		logger.Fatal("env:", err)
	}

	flag.StringVar(&addr, "addr", env.Addr, "server address")
	flag.StringVar(&dsn, "dsn", env.DSN, "database connection string")
	flag.StringVar(&signingKey, "signing-key", env.SigningKey, "base64 encoded signing key")
	flag.StringVar(&imageDir, "image-dir", env.ImageDir, "directory for uploaded avatars")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins = env.AllowedOrigins
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, allowedOrigins, imageDir)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	broadcaster := server.NewBroadcaster(logger, statsUpdater)
	chatService := chat.NewService(logger, dbConn, broadcaster, statsUpdater)

	srv := api.NewChatApp(mux, logger, broadcaster, chatService, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go broadcaster.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down broadcaster...")
	if err := broadcaster.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("broadcaster shutdown:", err)
	}

	logger.Println("shutdown complete")
}
