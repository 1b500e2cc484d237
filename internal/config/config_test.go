package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heymumford/go5250/internal/testutil/testlog"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfileDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeProfile(t, `
name = "dev"
host = "ibmi.example.com"
device = "GOTERM01"
wide = true
connect_timeout = "2s"
max_retries = 5

[backoff]
initial_delay = "100ms"
jitter = false
`)
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if p.Name != "dev" || p.Host != "ibmi.example.com" || p.Device != "GOTERM01" {
		t.Fatalf("identity got=%+v", p)
	}
	if p.Port != 23 {
		t.Fatalf("default port got=%d", p.Port)
	}
	if p.Addr() != "ibmi.example.com:23" {
		t.Fatalf("addr got=%q", p.Addr())
	}
	if !p.Wide || !p.Session.Wide {
		t.Fatalf("wide flag should propagate to session config")
	}
	if p.Session.ConnectTimeout != 2*time.Second {
		t.Fatalf("connect timeout got=%v", p.Session.ConnectTimeout)
	}
	if p.Session.MaxRetries != 5 {
		t.Fatalf("max retries got=%d", p.Session.MaxRetries)
	}
	if p.Session.Backoff.InitialDelay != 100*time.Millisecond {
		t.Fatalf("backoff initial got=%v", p.Session.Backoff.InitialDelay)
	}
	if p.Session.Backoff.Jitter {
		t.Fatalf("jitter override should apply")
	}
	// Keys the file never mentions keep reliability defaults.
	if p.Session.WriteTimeout != 15*time.Second {
		t.Fatalf("write timeout default got=%v", p.Session.WriteTimeout)
	}
	if p.Session.Backoff.Multiplier != 2.0 {
		t.Fatalf("backoff multiplier default got=%v", p.Session.Backoff.Multiplier)
	}
}

func TestLoadProfileMissingHost(t *testing.T) {
	testlog.Start(t)
	path := writeProfile(t, `name = "broken"`)
	if _, err := LoadProfile(path); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestLoadProfileBadDuration(t *testing.T) {
	testlog.Start(t)
	path := writeProfile(t, `
host = "h"
connect_timeout = "soon"
`)
	if _, err := LoadProfile(path); err == nil {
		t.Fatalf("expected duration parse failure")
	}
}

func TestLoadProfileBadPort(t *testing.T) {
	testlog.Start(t)
	path := writeProfile(t, `
host = "h"
port = 70000
`)
	if _, err := LoadProfile(path); err == nil {
		t.Fatalf("expected port validation failure")
	}
}
