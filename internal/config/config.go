/*
Copyright (c) 2025 The bors-mg Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package config loads the process settings once at start-up.
//
// Values come from, in order of precedence, command line flags bound by the
// caller, environment variables and an optional config file. Keys map to
// environment variables by upper-casing them and replacing "." and "-" with
// "_", so "store.backend" is read from STORE_BACKEND.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/viper"

	"github.com/sagudev/bors-mg/internal/github"
)

// Version is set at build time using the -X linker flag
var Version = "dev"

const (
	WebhookSecret  = "webhook-secret"
	Token          = "pat"
	AppID          = "app-id"
	PrivateKey     = "private-key"
	PrivateKeyFile = "private-key-file"
	GitHubAPIURL   = "github.api-url"

	CommandPrefix = "cmd-prefix"
	OrgConfigRepo = "org-config-repo"

	ListenAddress = "listen-address"
	Port          = "port"
	WebhookPath   = "webhook.path"

	StoreBackend   = "store.backend"
	StoreNamespace = "store.namespace"

	RefreshInterval = "refresh.interval"
	BuildTimeout    = "build.timeout"
)

const (
	BackendMemory     = "memory"
	BackendKubernetes = "kubernetes"
)

var backends = mapset.NewSet(BackendMemory, BackendKubernetes)

// ErrMissingWebhookSecret is returned when no webhook secret is configured
var ErrMissingWebhookSecret = errors.New("webhook secret is required (set WEBHOOK_SECRET)")

// Settings is the immutable process configuration
type Settings struct {
	WebhookSecret string
	Credentials   github.Credentials
	GitHubAPIURL  string

	CommandPrefix string
	OrgConfigRepo string

	ListenAddress string
	Port          int
	WebhookPath   string

	StoreBackend   string
	StoreNamespace string

	RefreshInterval time.Duration
	BuildTimeout    time.Duration
}

// New creates a viper instance with defaults and environment lookup
func New() *viper.Viper {
	v := viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_")))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(CommandPrefix, "@bors-servo")
	v.SetDefault(OrgConfigRepo, ".github")
	v.SetDefault(ListenAddress, "")
	v.SetDefault(Port, 8080)
	v.SetDefault(WebhookPath, "/github")
	v.SetDefault(StoreBackend, BackendMemory)
	v.SetDefault(StoreNamespace, "bors")
	v.SetDefault(RefreshInterval, time.Minute)
	v.SetDefault(BuildTimeout, time.Hour)
}

// ReadFile merges a config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load validates v and snapshots it into Settings
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		WebhookSecret:   v.GetString(WebhookSecret),
		GitHubAPIURL:    v.GetString(GitHubAPIURL),
		CommandPrefix:   strings.TrimSpace(v.GetString(CommandPrefix)),
		OrgConfigRepo:   v.GetString(OrgConfigRepo),
		ListenAddress:   v.GetString(ListenAddress),
		Port:            v.GetInt(Port),
		WebhookPath:     v.GetString(WebhookPath),
		StoreBackend:    strings.ToLower(v.GetString(StoreBackend)),
		StoreNamespace:  v.GetString(StoreNamespace),
		RefreshInterval: v.GetDuration(RefreshInterval),
		BuildTimeout:    v.GetDuration(BuildTimeout),
	}

	if s.WebhookSecret == "" {
		return Settings{}, ErrMissingWebhookSecret
	}

	creds, err := loadCredentials(v)
	if err != nil {
		return Settings{}, err
	}
	s.Credentials = creds

	if s.CommandPrefix == "" {
		return Settings{}, fmt.Errorf("%s must not be empty", CommandPrefix)
	}
	if s.Port < 1 || s.Port > 65535 {
		return Settings{}, fmt.Errorf("invalid %s %d", Port, s.Port)
	}
	if !backends.Contains(s.StoreBackend) {
		return Settings{}, fmt.Errorf("invalid %s %q (expected one of %v)", StoreBackend, s.StoreBackend, backends.ToSlice())
	}
	if s.StoreBackend == BackendKubernetes && s.StoreNamespace == "" {
		return Settings{}, fmt.Errorf("%s is required for the kubernetes backend", StoreNamespace)
	}
	if s.RefreshInterval <= 0 {
		return Settings{}, fmt.Errorf("%s must be positive", RefreshInterval)
	}
	if s.BuildTimeout <= 0 {
		return Settings{}, fmt.Errorf("%s must be positive", BuildTimeout)
	}

	return s, nil
}

func loadCredentials(v *viper.Viper) (github.Credentials, error) {
	creds := github.Credentials{
		Token: v.GetString(Token),
		AppID: v.GetInt64(AppID),
	}

	key := v.GetString(PrivateKey)
	if key == "" {
		if path := v.GetString(PrivateKeyFile); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return github.Credentials{}, fmt.Errorf("failed to read private key: %w", err)
			}
			key = string(data)
		}
	}
	if key != "" {
		creds.PrivateKey = []byte(key)
	}

	if (creds.AppID != 0) != (len(creds.PrivateKey) > 0) {
		return github.Credentials{}, errors.New("APP_ID and PRIVATE_KEY must be set together")
	}
	if !creds.HasToken() && !creds.HasApp() {
		return github.Credentials{}, errors.New("no GitHub credentials configured (set PAT or APP_ID and PRIVATE_KEY)")
	}
	return creds, nil
}
