package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/acarcay/voice-agent/internal/config"
)

// HTTPProvisioner talks to a room service over its JSON HTTP API.
type HTTPProvisioner struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
}

// NewHTTPProvisioner constructs a provisioner from room service config.
func NewHTTPProvisioner(cfg config.RoomConfig) *HTTPProvisioner {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvisioner{
		baseURL:   strings.TrimRight(cfg.ServiceURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		client:    &http.Client{Timeout: timeout},
	}
}

type createRoomRequest struct {
	Name     string `json:"name"`
	Metadata string `json:"metadata"`
}

type roomResponse struct {
	Name         string `json:"name"`
	CreationTime int64  `json:"creation_time"`
}

// CreateRoom provisions a room, mapping name conflicts to ErrRoomExists.
func (p *HTTPProvisioner) CreateRoom(ctx context.Context, name string, metadata Metadata) (Room, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Room{}, fmt.Errorf("rooms: marshal metadata: %w", err)
	}

	body, err := json.Marshal(createRoomRequest{Name: name, Metadata: string(metaJSON)})
	if err != nil {
		return Room{}, fmt.Errorf("rooms: marshal request: %w", err)
	}

	resp, err := p.do(ctx, http.MethodPost, "/v1/rooms", body)
	if err != nil {
		return Room{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return Room{Name: name}, ErrRoomExists
	case resp.StatusCode >= 500:
		return Room{}, fmt.Errorf("rooms: create %s: status %d: %w", name, resp.StatusCode, ErrTransient)
	case resp.StatusCode >= 400:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if strings.Contains(strings.ToLower(string(payload)), "already exists") {
			return Room{Name: name}, ErrRoomExists
		}
		return Room{}, fmt.Errorf("rooms: create %s: status %d: %s", name, resp.StatusCode, payload)
	}

	var parsed roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Room{}, fmt.Errorf("rooms: decode response: %w", err)
	}

	room := Room{Name: parsed.Name, CreatedAt: time.Unix(parsed.CreationTime, 0).UTC()}
	if room.Name == "" {
		room.Name = name
	}
	return room, nil
}

// DeleteRoom tears the room down. A missing room is not an error.
func (p *HTTPProvisioner) DeleteRoom(ctx context.Context, name string) error {
	resp, err := p.do(ctx, http.MethodDelete, "/v1/rooms/"+name, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("rooms: delete %s: status %d", name, resp.StatusCode)
	}
	return nil
}

func (p *HTTPProvisioner) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("rooms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(p.apiKey, p.apiSecret)

	resp, err := p.client.Do(req)
	if err != nil {
		if isConnectivityError(err) {
			return nil, fmt.Errorf("rooms: %s %s: %v: %w", method, path, err, ErrTransient)
		}
		return nil, fmt.Errorf("rooms: %s %s: %w", method, path, err)
	}
	return resp, nil
}

func isConnectivityError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
