package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/assetaudit/backend/internal/infrastructure/auditclient"
	"github.com/assetaudit/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type commandContext struct {
	server   string
	token    string
	tenant   string
	user     string
	timeout  time.Duration
	logLevel string

	clientOnce sync.Once
	client     *auditclient.Client
	clientErr  error

	loggerOnce sync.Once
	log        *zap.Logger
}

func (c *commandContext) apiClient() (*auditclient.Client, error) {
	c.clientOnce.Do(func() {
		c.client, c.clientErr = auditclient.New(auditclient.Config{
			BaseURL:  strings.TrimSpace(c.server),
			Token:    strings.TrimSpace(c.token),
			TenantID: strings.TrimSpace(c.tenant),
			UserID:   strings.TrimSpace(c.user),
			Timeout:  c.timeout,
		})
		if c.clientErr != nil {
			c.clientErr = fmt.Errorf("configure api client: %w", c.clientErr)
		}
	})
	return c.client, c.clientErr
}

// logger writes to stderr so stdout stays clean for tables
func (c *commandContext) logger() *zap.Logger {
	c.loggerOnce.Do(func() {
		l, err := logger.New(&logger.Config{Level: c.logLevel, Format: "console", Output: "stderr"})
		if err != nil {
			l = zap.NewNop()
		}
		c.log = l
	})
	return c.log
}

func parseAuditID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, errors.New("audit id must be a UUID")
	}
	return id, nil
}
