package di

import (
	"context"
	"testing"
	"time"

	"transit-console/internal/backup/config"
	"transit-console/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_EmptyIsHealthyAndClosable(t *testing.T) {
	c := NewContainer(logger.NewNopLogger())

	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.Nil(t, c.GetBackupModule())
	assert.NoError(t, c.Close())
}

func TestContainer_InitializeFailsWithoutMongo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MongoDBURI = "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := NewContainer(logger.NewNopLogger())
	err := c.Initialize(ctx, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MongoDB")
	assert.Nil(t, c.GetBackupModule())
}
