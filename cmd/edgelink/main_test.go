package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes a minimal config with MQTT and InfluxDB disabled.
func writeConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := fmt.Sprintf(`
edge:
  default_device_id: fems
  persist_interval: 1

database:
  path: %q
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  host: "127.0.0.1"
  port: %d

websocket:
  subscription_interval_ms: 100

logging:
  level: error
  format: text
  output: stderr

security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"

components:
  config_file: %q
`, filepath.Join(dir, "edgelink.db"), port, filepath.Join(dir, "components.yaml"))

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// execute runs the command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	t.Cleanup(func() { cfgFile = "" })

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ─── Config path ────────────────────────────────────────────────────

func TestGetConfigPath(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(configEnv, "")
		cfgFile = ""
		if got := getConfigPath(); got != defaultConfigPath {
			t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(configEnv, "/custom/path/config.yaml")
		cfgFile = ""
		if got := getConfigPath(); got != "/custom/path/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(configEnv, "/custom/path/config.yaml")
		cfgFile = "/flag/config.yaml"
		defer func() { cfgFile = "" }()
		if got := getConfigPath(); got != "/flag/config.yaml" {
			t.Errorf("getConfigPath() = %q", got)
		}
	})
}

// ─── Commands ───────────────────────────────────────────────────────

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "edgelink "+version) {
		t.Errorf("output = %q", out)
	}
}

func TestEdgeAndUserCommands(t *testing.T) {
	cfg := writeConfig(t, 8085)

	if _, err := execute(t, "--config", cfg, "edge", "add", "edge1", "--name", "Garage"); err != nil {
		t.Fatalf("edge add error = %v", err)
	}
	if _, err := execute(t, "--config", cfg, "edge", "add", "edge1"); err == nil {
		t.Error("duplicate edge add succeeded")
	}

	out, err := execute(t, "--config", cfg, "user", "add", "edge1", "--password", "pw", "--edge", "edge1")
	if err != nil {
		t.Fatalf("user add error = %v", err)
	}
	if !strings.Contains(out, "role=owner") {
		t.Errorf("user add output = %q", out)
	}

	if _, err := execute(t, "--config", cfg, "user", "add", "ghost", "--password", "pw", "--edge", "nope"); err == nil {
		t.Error("user add with unknown edge succeeded")
	}
	if _, err := execute(t, "--config", cfg, "user", "add", "bob", "--password", "pw", "--role", "root"); err == nil {
		t.Error("user add with invalid role succeeded")
	}
	if _, err := execute(t, "--config", cfg, "user", "add", "bob"); err == nil {
		t.Error("user add without password succeeded")
	}

	out, err = execute(t, "--config", cfg, "edge", "list")
	if err != nil {
		t.Fatalf("edge list error = %v", err)
	}
	if !strings.Contains(out, "edge1\tGarage") {
		t.Errorf("edge list output = %q", out)
	}
}

// ─── Server lifecycle ───────────────────────────────────────────────

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	port := freePort(t)
	cfg := writeConfig(t, port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("health status = %d", resp.StatusCode)
			}
			break
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became healthy: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	components := filepath.Join(filepath.Dir(cfg), "components.yaml")
	if _, err := os.Stat(components); err != nil {
		t.Errorf("default component config not written: %v", err)
	}
}
