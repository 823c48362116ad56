package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/civic-portal-api/pkg/config"
)

func TestDSNFromFields(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "portal", Password: "p@ss word", Name: "civic", SSLMode: "disable"})
	assert.Equal(t, "postgres://portal:p%40ss%20word@db:5432/civic?application_name=civic-portal-api&sslmode=disable", dsn)
}

func TestDSNPrefersURL(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{URL: "postgres://u:p@h/db", Host: "ignored"})
	assert.Equal(t, "postgres://u:p@h/db", dsn)
}
