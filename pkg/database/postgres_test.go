package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/workhub-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 6543, User: "app", Password: "pw", Name: "workhub", SSLMode: "require"})
	assert.Equal(t, "host=db port=6543 user=app password=pw dbname=workhub sslmode=require", dsn)
}
