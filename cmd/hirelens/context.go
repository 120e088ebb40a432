package main

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"hirelens/internal/archive"
	"hirelens/internal/auth"
	"hirelens/internal/config"
	"hirelens/internal/logging"
	"hirelens/internal/scoring"
)

var errNotLoggedIn = errors.New("not logged in; run `hirelens login` first")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	authOnce sync.Once
	auth     *auth.Context
	authErr  error

	mu      sync.Mutex
	archive *archive.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) authContext() (*auth.Context, error) {
	c.authOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.authErr = err
			return
		}
		c.auth, c.authErr = auth.NewContext(auth.NewFileTokenStore(cfg.Auth.TokenPath), cfg.Auth.Token)
	})
	return c.auth, c.authErr
}

// scoringClient builds a client; requireLogin rejects a missing or expired
// token before any request is made.
func (c *commandContext) scoringClient(requireLogin bool) (*scoring.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	authCtx, err := c.authContext()
	if err != nil {
		return nil, err
	}
	if requireLogin && !authCtx.Authenticated() {
		return nil, errNotLoggedIn
	}
	return scoring.NewClient(cfg.Service.BaseURL, authCtx,
		scoring.WithLogger(logger),
		scoring.WithTimeout(cfg.HTTPTimeout()),
		scoring.WithRetryPolicy(retryPolicy(cfg)),
	), nil
}

func (c *commandContext) archiveStore() (*archive.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.archive != nil {
		return c.archive, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := archive.Open(cfg)
	if err != nil {
		return nil, err
	}
	c.archive = store
	return store, nil
}

func (c *commandContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.archive != nil {
		_ = c.archive.Close()
		c.archive = nil
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
