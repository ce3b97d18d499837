// Package config loads coordinator and agent settings from defaults, an
// optional YAML file, COORD_* environment variables and bound command flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server keys.
const (
	PortKey           = "port"
	GRPCPortKey       = "grpc_port"
	DBPathKey         = "db_path"
	KafkaBrokersKey   = "kafka_brokers"
	KafkaTopicKey     = "kafka_topic"
	AllowedOriginsKey = "allowed_origins"
	SendBufferKey     = "send_buffer"
	ArchiveQueueKey   = "archive_queue"
	RetentionKey      = "retention"
	JournalKey        = "journal"
	MemoryRunsKey     = "memory_runs"
)

// Agent keys.
const (
	ServerURLKey   = "server"
	RoomKey        = "room"
	TargetURLKey   = "url"
	MethodKey      = "method"
	RequestsKey    = "requests"
	ConcurrencyKey = "concurrency"
	TimeoutKey     = "timeout"
	HeadersKey     = "headers"
	BodyKey        = "body"
	MinClientsKey  = "min_clients"
)

const envPrefix = "COORD"

// Server holds the coordinator process settings.
type Server struct {
	Port           int
	GRPCPort       int
	DBPath         string
	KafkaBrokers   []string
	KafkaTopic     string
	AllowedOrigins []string
	SendBuffer     int
	ArchiveQueue   int
	Retention      time.Duration
	Journal        string
	MemoryRuns     int
}

// Agent holds the settings of one load-generating agent.
type Agent struct {
	ServerURL   string
	Room        string
	TargetURL   string
	Method      string
	Requests    int
	Concurrency int
	Timeout     time.Duration
	Headers     map[string]string
	Body        string
	MinClients  int
}

// NewViper returns a viper instance reading COORD_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// SetServerDefaults registers the default value of every server key.
func SetServerDefaults(v *viper.Viper) {
	v.SetDefault(PortKey, 8080)
	v.SetDefault(GRPCPortKey, 0)
	v.SetDefault(DBPathKey, "data/runs.db")
	v.SetDefault(KafkaBrokersKey, []string{})
	v.SetDefault(KafkaTopicKey, "loadtest-results")
	v.SetDefault(AllowedOriginsKey, []string{"*"})
	v.SetDefault(SendBufferKey, 256)
	v.SetDefault(ArchiveQueueKey, 64)
	v.SetDefault(RetentionKey, time.Duration(0))
	v.SetDefault(JournalKey, "")
	v.SetDefault(MemoryRunsKey, 1000)
}

// SetAgentDefaults registers the default value of every agent key.
func SetAgentDefaults(v *viper.Viper) {
	v.SetDefault(ServerURLKey, "ws://localhost:8080/api/ws")
	v.SetDefault(RoomKey, "")
	v.SetDefault(MethodKey, "GET")
	v.SetDefault(RequestsKey, 100)
	v.SetDefault(ConcurrencyKey, 10)
	v.SetDefault(TimeoutKey, 5*time.Second)
	v.SetDefault(MinClientsKey, 1)
}

// ReadFile loads an optional YAML config file. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadServer resolves the server settings.
func LoadServer(v *viper.Viper) (Server, error) {
	cfg := Server{
		Port:           v.GetInt(PortKey),
		GRPCPort:       v.GetInt(GRPCPortKey),
		DBPath:         v.GetString(DBPathKey),
		KafkaBrokers:   splitList(v.GetStringSlice(KafkaBrokersKey)),
		KafkaTopic:     v.GetString(KafkaTopicKey),
		AllowedOrigins: splitList(v.GetStringSlice(AllowedOriginsKey)),
		SendBuffer:     v.GetInt(SendBufferKey),
		ArchiveQueue:   v.GetInt(ArchiveQueueKey),
		Retention:      v.GetDuration(RetentionKey),
		Journal:        v.GetString(JournalKey),
		MemoryRuns:     v.GetInt(MemoryRunsKey),
	}
	return cfg, cfg.Validate()
}

// Validate checks the server settings for values that cannot work.
func (s Server) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", s.GRPCPort)
	}
	if s.GRPCPort != 0 && s.GRPCPort == s.Port {
		return errors.New("grpc port must differ from the http port")
	}
	if len(s.KafkaBrokers) > 0 && s.KafkaTopic == "" {
		return errors.New("kafka topic is required when brokers are set")
	}
	if s.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be positive, got %d", s.SendBuffer)
	}
	if s.Retention < 0 {
		return errors.New("retention cannot be negative")
	}
	return nil
}

// LoadAgent resolves the agent settings.
func LoadAgent(v *viper.Viper) (Agent, error) {
	cfg := Agent{
		ServerURL:   v.GetString(ServerURLKey),
		Room:        v.GetString(RoomKey),
		TargetURL:   v.GetString(TargetURLKey),
		Method:      strings.ToUpper(v.GetString(MethodKey)),
		Requests:    v.GetInt(RequestsKey),
		Concurrency: v.GetInt(ConcurrencyKey),
		Timeout:     v.GetDuration(TimeoutKey),
		Headers:     v.GetStringMapString(HeadersKey),
		Body:        v.GetString(BodyKey),
		MinClients:  v.GetInt(MinClientsKey),
	}
	if cfg.ServerURL == "" {
		return cfg, errors.New("server url is required")
	}
	if cfg.Room == "" && cfg.TargetURL == "" {
		return cfg, errors.New("either a room to join or a target url to host is required")
	}
	return cfg, nil
}

// IsHost reports whether the agent creates its own room.
func (a Agent) IsHost() bool {
	return a.Room == ""
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
