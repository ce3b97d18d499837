package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServer_Defaults(t *testing.T) {
	v := NewViper()
	SetServerDefaults(v)

	cfg, err := LoadServer(v)
	if err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if cfg.Port != 8080 || cfg.GRPCPort != 0 || cfg.DBPath != "data/runs.db" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("kafka should be disabled by default, got %v", cfg.KafkaBrokers)
	}
	if cfg.Journal != "" || cfg.MemoryRuns != 1000 {
		t.Errorf("unexpected archive defaults journal=%q memory_runs=%d", cfg.Journal, cfg.MemoryRuns)
	}
}

func TestLoadServer_Environment(t *testing.T) {
	t.Setenv("COORD_PORT", "9090")
	t.Setenv("COORD_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("COORD_RETENTION", "72h")
	t.Setenv("COORD_JOURNAL", "/var/log/runs.jsonl")

	v := NewViper()
	SetServerDefaults(v)

	cfg, err := LoadServer(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.Retention != 72*time.Hour {
		t.Errorf("unexpected retention %v", cfg.Retention)
	}
	if cfg.Journal != "/var/log/runs.jsonl" {
		t.Errorf("unexpected journal %q", cfg.Journal)
	}
}

func TestLoadServer_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinator.yaml")
	content := "port: 7000\ngrpc_port: 7001\nallowed_origins:\n  - https://dash.example.com\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	v := NewViper()
	SetServerDefaults(v)
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	cfg, err := LoadServer(v)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Port != 7000 || cfg.GRPCPort != 7001 {
		t.Errorf("unexpected ports %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://dash.example.com" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}

	t.Run("missing file", func(t *testing.T) {
		if err := ReadFile(NewViper(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestServer_Validate(t *testing.T) {
	valid := Server{Port: 8080, SendBuffer: 256, KafkaTopic: "t"}

	tests := []struct {
		name   string
		mutate func(*Server)
	}{
		{"port out of range", func(s *Server) { s.Port = 70000 }},
		{"same ports", func(s *Server) { s.GRPCPort = 8080 }},
		{"brokers without topic", func(s *Server) { s.KafkaBrokers = []string{"k:9092"}; s.KafkaTopic = "" }},
		{"zero send buffer", func(s *Server) { s.SendBuffer = 0 }},
		{"negative retention", func(s *Server) { s.Retention = -time.Hour }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadAgent(t *testing.T) {
	t.Run("host", func(t *testing.T) {
		v := NewViper()
		SetAgentDefaults(v)
		v.Set(TargetURLKey, "http://target.local/")
		v.Set(MethodKey, "post")

		cfg, err := LoadAgent(v)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if !cfg.IsHost() || cfg.Method != "POST" || cfg.Timeout != 5*time.Second {
			t.Errorf("unexpected agent config %+v", cfg)
		}
	})

	t.Run("member", func(t *testing.T) {
		v := NewViper()
		SetAgentDefaults(v)
		v.Set(RoomKey, "room-1")

		cfg, err := LoadAgent(v)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if cfg.IsHost() {
			t.Error("an agent with a room joins it")
		}
	})

	t.Run("nothing to do", func(t *testing.T) {
		v := NewViper()
		SetAgentDefaults(v)
		if _, err := LoadAgent(v); err == nil {
			t.Error("expected error without room or target")
		}
	})
}
