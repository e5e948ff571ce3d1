// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. Struct tag rules cover field
// shape; Validate adds the cross-field rules tags cannot express.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for structural and cross-field errors.
// It returns the first error found; an enabled source with incomplete
// credentials is a startup failure, not a per-run one.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			ve := verrs[0]
			return fmt.Errorf("invalid value for %s (rule %q)", ve.Namespace(), ve.Tag())
		}
		return err
	}

	if err := c.validateBoard(); err != nil {
		return err
	}
	if err := c.validateAnalytics(); err != nil {
		return err
	}
	if err := c.validateUptime(); err != nil {
		return err
	}
	if err := c.validateVitals(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateBoard() error {
	if !c.Board.Enabled {
		return nil
	}
	if c.Board.URL == "" {
		return errors.New("board.url is required when board sync is enabled")
	}
	if c.Board.APIToken == "" {
		return errors.New("board.api_token is required when board sync is enabled")
	}
	if len(c.Board.BoardIDs) == 0 {
		return errors.New("board.board_ids must list at least one board when board sync is enabled")
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	if !c.Analytics.Enabled {
		return nil
	}
	if c.Analytics.URL == "" {
		return errors.New("analytics.url is required when analytics sync is enabled")
	}
	if c.Analytics.Credential == "" {
		return errors.New("analytics.credential is required when analytics sync is enabled")
	}
	if len(c.Analytics.Properties) == 0 {
		return errors.New("analytics.properties must list at least one property when analytics sync is enabled")
	}
	return nil
}

func (c *Config) validateUptime() error {
	if !c.Uptime.Enabled {
		return nil
	}
	if c.Uptime.URL == "" {
		return errors.New("uptime.url is required when uptime sync is enabled")
	}
	if c.Uptime.Email == "" || c.Uptime.Password == "" {
		return errors.New("uptime.email and uptime.password are required when uptime sync is enabled")
	}
	if c.Uptime.RefreshBuffer >= c.Uptime.TokenLifetime {
		return errors.New("uptime.refresh_buffer must be shorter than uptime.token_lifetime")
	}
	return nil
}

func (c *Config) validateVitals() error {
	if !c.Vitals.Enabled {
		return nil
	}
	if c.Vitals.URL == "" {
		return errors.New("vitals.url is required when vitals sync is enabled")
	}
	if len(c.Vitals.URLs) == 0 {
		return errors.New("vitals.urls must list at least one page when vitals sync is enabled")
	}
	for _, s := range c.Vitals.Strategies {
		if s != "mobile" && s != "desktop" {
			return fmt.Errorf("vitals.strategies contains unknown strategy %q", s)
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	switch c.Server.AuthMode {
	case "secret":
		if c.Server.SchedulerSecret == "" {
			return errors.New("server.scheduler_secret is required when auth_mode is secret")
		}
		if len(c.Server.SchedulerSecret) < 16 {
			return errors.New("server.scheduler_secret must be at least 16 characters")
		}
	case "jwt":
		if len(c.Server.JWTSecret) < 32 {
			return errors.New("server.jwt_secret must be at least 32 characters when auth_mode is jwt")
		}
	}
	return nil
}
