package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	staterender "github.com/bnema/odfops/internal/adapters/render/state"
	tomlrepo "github.com/bnema/odfops/internal/adapters/repo/toml"
	filestore "github.com/bnema/odfops/internal/adapters/secrets/file"
	"github.com/bnema/odfops/internal/adapters/token/jwt"
	"github.com/bnema/odfops/internal/application"
)

const (
	configDir  = ".odfops"
	configFile = "config.toml"
	envPrefix  = "ODFOPS"

	keyLogLevel        = "log.level"
	keyServerListen    = "server.listen"
	keyServerOpLog     = "server.oplog"
	keySecretsDir      = "secrets.dir"
	keyPollInterval    = "router.poll_interval"
	keyMaxRetries      = "router.max_retries"
	keyMaxFailedSyncs  = "router.max_failed_syncs"
	keyQuiet           = "ui.quiet"
	memoryOpLog        = "memory"
	defaultListenAddr  = "127.0.0.1:8080"
	defaultCallTimeout = 10 * time.Second
)

type app struct {
	config        *viper.Viper
	logger        *slog.Logger
	stderr        io.Writer
	users         *tomlrepo.Repository
	secrets       *filestore.Store
	stateRenderer func(staterender.Snapshot, staterender.RenderOptions) (string, error)
}

func wireApp(stderr io.Writer) (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	config, err := loadConfig(homeDir)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(stderr, config.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}

	users, err := tomlrepo.NewRepository(config)
	if err != nil {
		return nil, fmt.Errorf("wire user repository: %w", err)
	}

	return &app{
		config:        config,
		logger:        logger,
		stderr:        stderr,
		users:         users,
		secrets:       filestore.NewStore(config.GetString(keySecretsDir)),
		stateRenderer: staterender.Render,
	}, nil
}

func loadConfig(homeDir string) (*viper.Viper, error) {
	config := viper.New()
	config.SetConfigFile(filepath.Join(homeDir, configDir, configFile))
	config.SetConfigType("toml")
	config.SetEnvPrefix(envPrefix)
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	config.SetDefault(keyLogLevel, "info")
	config.SetDefault(keyServerListen, defaultListenAddr)
	config.SetDefault(keyServerOpLog, filepath.Join(homeDir, configDir, "oplog.db"))
	config.SetDefault(keySecretsDir, filepath.Join(homeDir, configDir, "secrets"))
	config.SetDefault(keyPollInterval, 500*time.Millisecond)
	config.SetDefault(keyMaxRetries, 3)
	config.SetDefault(keyMaxFailedSyncs, 5)
	config.SetDefault(keyQuiet, false)

	if err := config.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return config, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyLogLevel, err)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func (a *app) authService(ctx context.Context) (*application.AuthService, error) {
	key, err := jwt.LoadSigningKey(ctx, a.secrets)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	issuer, err := jwt.NewIssuer(key)
	if err != nil {
		return nil, fmt.Errorf("wire token issuer: %w", err)
	}

	return application.NewAuthService(a.users, issuer), nil
}
