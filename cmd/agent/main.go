package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/armada-loadtest/coordinator/internal/agent"
	"github.com/armada-loadtest/coordinator/internal/config"
	"github.com/armada-loadtest/coordinator/internal/model"
)

var (
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Load-generating agent for the coordinator",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.ReadFile(v, cfgFile)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Host a new room or join an existing one and take part in a test run",
	Long: `Without --room the agent creates a room, configures it from the target
flags and starts the test once --min-clients agents are present. With --room it
joins that room and waits for the host's start signal.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadAgent(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := agent.Dial(ctx, cfg.ServerURL)
		if err != nil {
			return err
		}
		defer client.Close()
		log.Printf("Connected to %s as %s", cfg.ServerURL, client.ID())

		opts := agent.Options{
			RoomID:     cfg.Room,
			MinClients: cfg.MinClients,
			OnRoom: func(roomID string) {
				if cfg.IsHost() {
					fmt.Fprintf(cmd.OutOrStdout(), "Room %s created, other agents can join with --room %s\n", roomID, roomID)
				}
			},
		}
		if cfg.IsHost() {
			opts.Config = testConfig(cfg)
			if err := opts.Config.Validate(); err != nil {
				return err
			}
		}

		out, err := agent.Participate(ctx, client, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), agent.Render(out))
		return nil
	},
}

var roomsCmd = &cobra.Command{
	Use:          "rooms",
	Short:        "List the coordinator's active rooms",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		rooms, err := agent.ListRooms(ctx, http.DefaultClient, v.GetString(config.ServerURLKey))
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No active rooms.")
			return nil
		}
		for _, r := range rooms {
			fmt.Fprintln(cmd.OutOrStdout(), agent.StatusLine(r))
		}
		return nil
	},
}

func testConfig(cfg config.Agent) *model.TestConfig {
	tc := &model.TestConfig{
		URL:               cfg.TargetURL,
		Method:            cfg.Method,
		Headers:           cfg.Headers,
		RequestsPerClient: cfg.Requests,
		Concurrency:       cfg.Concurrency,
		TimeoutMs:         int(cfg.Timeout / time.Millisecond),
	}
	if tc.Headers == nil {
		tc.Headers = map[string]string{}
	}
	if cfg.Body != "" {
		body := cfg.Body
		tc.Body = &body
	}
	return tc
}

func init() {
	config.SetAgentDefaults(v)

	pflags := rootCmd.PersistentFlags()
	pflags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	pflags.String("server", "ws://localhost:8080/api/ws", "coordinator WebSocket URL")
	v.BindPFlag(config.ServerURLKey, pflags.Lookup("server"))

	flags := runCmd.Flags()
	flags.String("room", "", "room to join (empty creates and hosts a new room)")
	flags.String("url", "", "target URL (host only)")
	flags.String("method", "GET", "HTTP method (host only)")
	flags.Int("requests", 100, "requests per agent (host only)")
	flags.Int("concurrency", 10, "concurrent workers per agent (host only)")
	flags.Duration("timeout", 5*time.Second, "per-request timeout (host only)")
	flags.StringToString("header", nil, "request header key=value, repeatable (host only)")
	flags.String("body", "", "request body (host only)")
	flags.Int("min-clients", 1, "agents to wait for before starting (host only)")

	v.BindPFlag(config.RoomKey, flags.Lookup("room"))
	v.BindPFlag(config.TargetURLKey, flags.Lookup("url"))
	v.BindPFlag(config.MethodKey, flags.Lookup("method"))
	v.BindPFlag(config.RequestsKey, flags.Lookup("requests"))
	v.BindPFlag(config.ConcurrencyKey, flags.Lookup("concurrency"))
	v.BindPFlag(config.TimeoutKey, flags.Lookup("timeout"))
	v.BindPFlag(config.HeadersKey, flags.Lookup("header"))
	v.BindPFlag(config.BodyKey, flags.Lookup("body"))
	v.BindPFlag(config.MinClientsKey, flags.Lookup("min-clients"))

	rootCmd.AddCommand(runCmd, roomsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
