package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateAllowsDevDefaults(t *testing.T) {
	cfg := &Config{Env: EnvDevelopment, JWT: JWTConfig{Secret: defaultJWTSecret}}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsDefaultSecretsInProduction(t *testing.T) {
	cfg := &Config{Env: EnvProduction, JWT: JWTConfig{Secret: defaultJWTSecret}}
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg.JWT.Secret = "rotated"
	cfg.Reports = ReportsConfig{Enabled: true, SignedURLSecret: defaultReportsSecret}
	assert.ErrorContains(t, cfg.Validate(), "REPORTS_SIGNED_URL_SECRET")

	cfg.Reports.SignedURLSecret = "also-rotated"
	assert.NoError(t, cfg.Validate())
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"https://portal.example", "http://localhost:3000"}, splitAndTrim(" https://portal.example , ,http://localhost:3000"))
	assert.Nil(t, splitAndTrim(""))
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, defaultTestTTL, parseDuration("bogus", defaultTestTTL))
	assert.Equal(t, 2*defaultTestTTL, parseDuration("10m", defaultTestTTL))
}

const defaultTestTTL = 5 * time.Minute
