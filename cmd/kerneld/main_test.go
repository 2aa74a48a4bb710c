package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/kernel/internal/config"
	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

func TestSplitHostPort(t *testing.T) {
	host, port, ok := splitHostPort("0.0.0.0:9090")
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, 9090, port)

	_, _, ok = splitHostPort("not-an-address")
	assert.False(t, ok)
}

func TestOpenBackendRejectsUnsupportedDriver(t *testing.T) {
	_, err := openBackend(context.Background(), config.DatabaseConfig{Driver: "mongodb", DSN: "irrelevant"})
	require.Error(t, err)
	assert.Equal(t, kerrors.KindValidation, kerrors.KindOf(err))
}
