// Package config loads TOML session profiles for the terminal client.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/heymumford/go5250/internal/session"
)

// Profile is one host connection profile.
type Profile struct {
	Name    string
	Host    string
	Port    int
	Device  string
	Wide    bool
	Session session.Config
}

type fileConfig struct {
	Name           string      `toml:"name"`
	Host           string      `toml:"host"`
	Port           int         `toml:"port"`
	Device         string      `toml:"device"`
	Wide           bool        `toml:"wide"`
	ConnectTimeout string      `toml:"connect_timeout"`
	WriteTimeout   string      `toml:"write_timeout"`
	MaxRetries     int         `toml:"max_retries"`
	SaveDepth      int         `toml:"save_depth"`
	Backoff        fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// LoadProfile reads a profile, applying reliability defaults for every
// key the file leaves out.
func LoadProfile(path string) (Profile, error) {
	p := Profile{
		Name:    "go5250",
		Port:    23,
		Session: session.DefaultConfig(),
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("load profile (%s): %w", path, err)
	}

	if meta.IsDefined("name") && strings.TrimSpace(raw.Name) != "" {
		p.Name = strings.TrimSpace(raw.Name)
	}
	p.Host = strings.TrimSpace(raw.Host)
	if meta.IsDefined("port") {
		p.Port = raw.Port
	}
	p.Device = strings.TrimSpace(raw.Device)
	if meta.IsDefined("wide") {
		p.Wide = raw.Wide
		p.Session.Wide = raw.Wide
	}
	if meta.IsDefined("connect_timeout") {
		d, err := parseDuration(raw.ConnectTimeout)
		if err != nil {
			return Profile{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		p.Session.ConnectTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration(raw.WriteTimeout)
		if err != nil {
			return Profile{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		p.Session.WriteTimeout = d
	}
	if meta.IsDefined("max_retries") {
		p.Session.MaxRetries = raw.MaxRetries
	}
	if meta.IsDefined("save_depth") {
		p.Session.SaveDepth = raw.SaveDepth
	}
	if meta.IsDefined("backoff", "initial_delay") {
		d, err := parseDuration(raw.Backoff.InitialDelay)
		if err != nil {
			return Profile{}, fmt.Errorf("parse backoff.initial_delay: %w", err)
		}
		p.Session.Backoff.InitialDelay = d
	}
	if meta.IsDefined("backoff", "multiplier") {
		p.Session.Backoff.Multiplier = raw.Backoff.Multiplier
	}
	if meta.IsDefined("backoff", "max_delay") {
		d, err := parseDuration(raw.Backoff.MaxDelay)
		if err != nil {
			return Profile{}, fmt.Errorf("parse backoff.max_delay: %w", err)
		}
		p.Session.Backoff.MaxDelay = d
	}
	if meta.IsDefined("backoff", "jitter") {
		p.Session.Backoff.Jitter = raw.Backoff.Jitter
	}

	if err := Validate(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func parseDuration(raw string) (time.Duration, error) {
	return time.ParseDuration(strings.TrimSpace(raw))
}

// Addr is the dialable host:port.
func (p Profile) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

func Validate(p Profile) error {
	if p.Host == "" {
		return fmt.Errorf("profile missing host")
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("profile port out of range: %d", p.Port)
	}
	if p.Session.MaxRetries < 0 {
		return fmt.Errorf("profile max_retries negative: %d", p.Session.MaxRetries)
	}
	return nil
}
