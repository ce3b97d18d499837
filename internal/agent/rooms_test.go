package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/armada-loadtest/coordinator/internal/model"
)

func TestAPIBase(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://localhost:8080/api/ws", "http://localhost:8080/api", false},
		{"wss://coord.example.com/api/ws/", "https://coord.example.com/api", false},
		{"http://localhost:8080/api", "http://localhost:8080/api", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := APIBase(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("APIBase(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("APIBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListRooms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rooms" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode([]model.RoomSnapshot{{ID: "room-1", ClientCount: 2}})
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws"
	rooms, err := ListRooms(context.Background(), server.Client(), wsURL)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != "room-1" {
		t.Errorf("unexpected rooms %+v", rooms)
	}

	t.Run("error status", func(t *testing.T) {
		if _, err := ListRooms(context.Background(), server.Client(), server.URL+"/elsewhere/ws"); err == nil {
			t.Error("expected error for 404")
		}
	})
}
