package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/armada-loadtest/coordinator/api/handlers"
	"github.com/armada-loadtest/coordinator/internal/config"
	"github.com/armada-loadtest/coordinator/internal/coordinator"
	"github.com/armada-loadtest/coordinator/internal/db"
	"github.com/armada-loadtest/coordinator/internal/health"
	"github.com/armada-loadtest/coordinator/internal/history"
	"github.com/armada-loadtest/coordinator/internal/logger"
	"github.com/armada-loadtest/coordinator/internal/repository"
	"github.com/armada-loadtest/coordinator/internal/ws"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

// runArchive serves the run API and accepts retention pruning.
type runArchive interface {
	handlers.RunStore
	history.Pruner
}

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Coordinates distributed load test runs across agents",
	Long: `coordinator groups connected agents into rooms, relays the host's test
configuration, broadcasts a shared start signal and merges every agent's
result into one aggregate per run. Completed runs are archived to SQLite
(or kept in memory), optionally appended to a JSON-Lines journal and
published to Kafka.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		cfg, err := config.LoadServer(v)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return run(cfg)
	},
}

func init() {
	config.SetServerDefaults(v)

	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.Int("port", 8080, "HTTP and WebSocket port")
	flags.Int("grpc-port", 0, "gRPC health port (0 disables it)")
	flags.String("db-path", "data/runs.db", "SQLite run archive (empty disables it)")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers for run publication")
	flags.String("kafka-topic", "loadtest-results", "Kafka topic for completed runs")
	flags.StringSlice("allowed-origins", []string{"*"}, "allowed browser origins")
	flags.Duration("retention", 0, "delete archived runs older than this (0 keeps them)")
	flags.String("journal", "", "append completed runs to this JSON-Lines file")
	flags.Int("memory-runs", 1000, "runs kept in memory when the SQLite archive is disabled")

	v.BindPFlag(config.PortKey, flags.Lookup("port"))
	v.BindPFlag(config.GRPCPortKey, flags.Lookup("grpc-port"))
	v.BindPFlag(config.DBPathKey, flags.Lookup("db-path"))
	v.BindPFlag(config.KafkaBrokersKey, flags.Lookup("kafka-brokers"))
	v.BindPFlag(config.KafkaTopicKey, flags.Lookup("kafka-topic"))
	v.BindPFlag(config.AllowedOriginsKey, flags.Lookup("allowed-origins"))
	v.BindPFlag(config.RetentionKey, flags.Lookup("retention"))
	v.BindPFlag(config.JournalKey, flags.Lookup("journal"))
	v.BindPFlag(config.MemoryRunsKey, flags.Lookup("memory-runs"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Server) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		recorders history.MultiRecorder
		runs      runArchive
	)

	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		database, err := db.InitDB(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.CloseDB()

		runRepo := repository.NewRunRepository(database)
		runs = runRepo
		recorders = append(recorders, history.NewSQLRecorder(runRepo))
		log.Printf("Archiving runs to %s", cfg.DBPath)
	} else {
		store := history.NewMemoryStore(cfg.MemoryRuns)
		runs = store
		recorders = append(recorders, store)
		log.Printf("Keeping the last %d runs in memory", cfg.MemoryRuns)
	}

	if cfg.Journal != "" {
		journal, err := logger.OpenJournal(cfg.Journal)
		if err != nil {
			return err
		}
		defer journal.Close()
		recorders = append(recorders, journal)
		log.Printf("Appending runs to journal %s", cfg.Journal)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := history.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		recorders = append(recorders, publisher)
		log.Printf("Publishing runs to Kafka topic %s", cfg.KafkaTopic)
	}

	archiver := history.NewArchiver(recorders, cfg.ArchiveQueue)
	defer archiver.Close()

	coord := coordinator.New(coordinator.Config{Archive: archiver})
	hub := ws.NewHub()
	wsHandler := ws.NewHandler(coord, hub,
		ws.WithAllowedOrigins(cfg.AllowedOrigins),
		ws.WithSendBuffer(cfg.SendBuffer),
	)

	r := gin.Default()
	handlers.NewHealthHandler(coord).RegisterRoutes(r)

	api := r.Group("/api")
	{
		handlers.NewRoomHandler(coord).RegisterRoutes(api)
		handlers.NewWebSocketHandler(wsHandler).RegisterRoutes(api)
		handlers.NewRunHandler(runs).RegisterRoutes(api)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: c.Handler(r),
	}

	var healthSrv *health.Server
	var healthLis net.Listener
	if cfg.GRPCPort != 0 {
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("failed to listen on grpc port: %w", err)
		}
		healthLis = lis
		healthSrv = health.NewServer()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting server on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	if healthSrv != nil {
		g.Go(func() error {
			return healthSrv.Serve(healthLis)
		})
		healthSrv.SetServing(true)
	}

	if cfg.Retention > 0 {
		g.Go(func() error {
			history.PruneLoop(gctx, runs, cfg.Retention, pruneInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		if healthSrv != nil {
			healthSrv.SetServing(false)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		// Hijacked WebSocket connections are not closed by Shutdown.
		hub.Close()
		if healthSrv != nil {
			healthSrv.Stop()
		}
		return err
	})

	return g.Wait()
}
