package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// APIBase derives the HTTP API base URL from the coordination WebSocket URL,
// e.g. ws://host:8080/api/ws becomes http://host:8080/api.
func APIBase(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/ws")
	u.RawQuery = ""
	return u.String(), nil
}

// ListRooms fetches the active rooms from the coordinator's HTTP API.
func ListRooms(ctx context.Context, client *http.Client, wsURL string) ([]model.RoomSnapshot, error) {
	base, err := APIBase(wsURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/rooms", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list rooms: %s", resp.Status)
	}

	var rooms []model.RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		return nil, fmt.Errorf("invalid room list: %w", err)
	}
	return rooms, nil
}
