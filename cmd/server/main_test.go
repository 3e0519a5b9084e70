package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/annel0/meadow-world/internal/api"
	"github.com/annel0/meadow-world/internal/auth"
	"github.com/annel0/meadow-world/internal/catalog"
	"github.com/annel0/meadow-world/internal/config"
	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/layers"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/world"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestStartConsoleRelaysBus(t *testing.T) {
	prevDir := logging.LogDir
	logging.LogDir = t.TempDir()
	defer func() { logging.LogDir = prevDir }()

	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Server.RESTPort = freePort(t)
	cfg.Console.JWTSecret = auth.GenerateSecureSecret()
	cfg.Console.Operators = []config.OperatorConfig{{Username: "host", PasswordHash: hash, Authoritative: true}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewMemoryBus(16)
	manager := layers.NewManager(layers.Config{LocalPlayer: "local"}, world.Services{Catalog: catalog.New(), Bus: bus})

	console, err := startConsole(ctx, cfg, manager, bus)
	require.NoError(t, err)
	defer console.Stop(context.Background())

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.RESTPort)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	body, _ := json.Marshal(api.LoginRequest{Username: "host", Password: "pw"})
	resp, err := http.Post(base+"/api/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	var login api.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()
	require.True(t, login.Success)

	url := fmt.Sprintf("ws://127.0.0.1:%d/api/stream?token=%s", cfg.Server.RESTPort, login.Token)
	conn, wsResp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "поток событий должен быть подключён к шине")
	wsResp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame api.StreamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, api.FrameSubscribed, frame.Type)
}
