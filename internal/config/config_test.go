// internal/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"plc-monitor/internal/driver/melsec"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config err=%v", err)
	}
	return path
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd err=%v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir err=%v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore wd err=%v", err)
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.PLC.PollInterval != 500*time.Millisecond {
		t.Fatalf("poll_interval=%v", cfg.PLC.PollInterval)
	}
	if cfg.PLC.RetryDelay != 2*time.Second || cfg.PLC.ResponseTimeoutTicks != 100 {
		t.Fatalf("unexpected retry defaults %+v", cfg.PLC)
	}
	if cfg.Database.Enabled || !cfg.Metrics.Enabled || cfg.Metrics.Namespace != "plc_monitor" {
		t.Fatalf("unexpected feature defaults %+v %+v", cfg.Database, cfg.Metrics)
	}
	if cfg.GetServerAddr() != "0.0.0.0:8084" {
		t.Fatalf("server addr=%s", cfg.GetServerAddr())
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  environment: test
plc:
  host: 10.0.0.5
  port: 5007
  poll_interval: 250ms
monitor:
  repeat: true
  sequence:
    - name: ready
      address: D100
      value: 100
      timeout: 60s
    - address: M20
      value: 1
      mask: 1
      scale: "0.1"
      unit: bar
`)
	t.Setenv("PLC_MONITOR_PLC_PORT", "6000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.PLC.Host != "10.0.0.5" || cfg.PLC.Port != 6000 || cfg.PLC.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected plc config %+v", cfg.PLC)
	}
	if cfg.GetPLCAddr() != "10.0.0.5:6000" {
		t.Fatalf("plc addr=%s", cfg.GetPLCAddr())
	}

	seq := cfg.Monitor.Sequence
	if len(seq) != 2 || !cfg.Monitor.Repeat {
		t.Fatalf("unexpected sequence %+v", cfg.Monitor)
	}
	if seq[0].Name != "ready" || seq[0].Mask != 0xFFFF || seq[0].Timeout != time.Minute || seq[0].Scale != "1" {
		t.Fatalf("unexpected first step %+v", seq[0])
	}
	if seq[1].Name != "step-2" || seq[1].Mask != 1 || seq[1].Scale != "0.1" || seq[1].Unit != "bar" {
		t.Fatalf("unexpected second step %+v", seq[1])
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("missing explicit config file accepted")
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty host", "plc:\n  host: \"\"\n", "plc: TCP host is required"},
		{"bad port", "plc:\n  port: 0\n", "plc: invalid port number: 0"},
		{"port too large", "plc:\n  port: 70000\n", "plc: invalid port number: 70000"},
		{"negative connect timeout", "plc:\n  connect_timeout: -1s\n", "plc: timeouts must not be negative"},
		{"bad interval", "plc:\n  poll_interval: 0s\n", "poll_interval"},
		{"bad environment", "app:\n  environment: moon\n", "environment"},
		{"bad level", "logging:\n  level: loud\n", "level"},
		{"value off mask", "monitor:\n  sequence:\n    - address: D1\n      value: 16\n      mask: 15\n", "outside mask"},
		{"bad scale", "monitor:\n  sequence:\n    - address: D1\n      value: 1\n      scale: abc\n", "invalid scale"},
	}
	for _, tc := range cases {
		_, err := Load(writeConfig(t, tc.body))
		if err == nil {
			t.Fatalf("%s: invalid config accepted", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}

func TestLoad_SequenceAddressError(t *testing.T) {
	path := writeConfig(t, "monitor:\n  sequence:\n    - address: Q100\n      value: 1\n")
	_, err := Load(path)
	if !errors.Is(err, melsec.ErrUnknownDeviceType) {
		t.Fatalf("expected ErrUnknownDeviceType, got %v", err)
	}
}
