// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OAuthConfig holds optional client-credential settings for mailbox
// providers that authenticate via OAUTHBEARER instead of a password.
type OAuthConfig struct {
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// Enabled reports whether OAuth mailbox authentication is configured.
func (o OAuthConfig) Enabled() bool {
	return o.TokenURL != "" && o.ClientID != "" && o.ClientSecret != ""
}

// IMAPConfig holds the inbound mailbox settings shared by all project
// manager sessions.
type IMAPConfig struct {
	Host        string
	Port        int
	DialTimeout time.Duration
	AuthTimeout time.Duration
	OAuth       OAuthConfig
}

// ServiceAccount is the sending identity for digest notifications.
type ServiceAccount struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
}

// SMTPConfig holds the outbound relay settings.
type SMTPConfig struct {
	Host           string
	Port           int
	SendTimeout    time.Duration
	ServiceAccount ServiceAccount
}

// Config holds all configuration for the mailwatch service.
type Config struct {
	DatabaseURL string
	RedisURL    string

	IMAP IMAPConfig
	SMTP SMTPConfig

	// ReminderThreshold is how long a read-but-unreplied mail may sit
	// before escalation; ReminderCooldown is the minimum gap between two
	// reminders for the same mail.
	ReminderThreshold time.Duration
	ReminderCooldown  time.Duration

	// Scheduler behaviour.
	TickInterval time.Duration
	TickTimeout  time.Duration

	// HTTP API port.
	Port int

	// MasterKey is the 32-byte hex-encoded secretbox key used to seal
	// project manager mailbox passwords at rest.
	MasterKey string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	IMAP struct {
		Host        string      `yaml:"host"`
		Port        int         `yaml:"port"`
		DialTimeout string      `yaml:"dial_timeout"`
		AuthTimeout string      `yaml:"auth_timeout"`
		OAuth       OAuthConfig `yaml:"oauth"`
	} `yaml:"imap"`
	SMTP struct {
		Host           string         `yaml:"host"`
		Port           int            `yaml:"port"`
		SendTimeout    string         `yaml:"send_timeout"`
		ServiceAccount ServiceAccount `yaml:"service_account"`
	} `yaml:"smtp"`
	Reminder struct {
		Threshold string `yaml:"threshold"`
		Cooldown  string `yaml:"cooldown"`
	} `yaml:"reminder"`
	Scheduler struct {
		Interval    string `yaml:"interval"`
		TickTimeout string `yaml:"tick_timeout"`
	} `yaml:"scheduler"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Secrets struct {
		MasterKey string `yaml:"master_key"`
	} `yaml:"secrets"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		DatabaseURL: firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "")),
		RedisURL:    firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		IMAP: IMAPConfig{
			Host:        firstNonEmpty(raw.IMAP.Host, "imap.codeautomation.ai"),
			Port:        intOrDefault(raw.IMAP.Port, 993),
			DialTimeout: durationOrDefault(raw.IMAP.DialTimeout, 15*time.Second),
			AuthTimeout: durationOrDefault(raw.IMAP.AuthTimeout, 10*time.Second),
			OAuth:       raw.IMAP.OAuth,
		},
		SMTP: SMTPConfig{
			Host:           firstNonEmpty(raw.SMTP.Host, "smtp.codeautomation.ai"),
			Port:           intOrDefault(raw.SMTP.Port, 465),
			SendTimeout:    durationOrDefault(raw.SMTP.SendTimeout, 30*time.Second),
			ServiceAccount: raw.SMTP.ServiceAccount,
		},
		// The legacy service commented "30 minutes" but shipped 60 seconds.
		// The observed value is the default; deployments set their own.
		ReminderThreshold: durationOrDefault(raw.Reminder.Threshold, 60*time.Second),
		ReminderCooldown:  durationOrDefault(raw.Reminder.Cooldown, 30*time.Minute),
		TickInterval:      durationOrDefault(raw.Scheduler.Interval, time.Minute),
		TickTimeout:       durationOrDefault(raw.Scheduler.TickTimeout, 5*time.Minute),
		Port:              intOrDefault(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		MasterKey:         firstNonEmpty(raw.Secrets.MasterKey, envOrDefault("MAILWATCH_MASTER_KEY", "")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if cfg.MasterKey == "" {
		return nil, fmt.Errorf("secrets.master_key (or MAILWATCH_MASTER_KEY) is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func intOrDefault(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func durationOrDefault(v string, fallback time.Duration) time.Duration {
	if v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
