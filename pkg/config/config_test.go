package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/storebroker/pkg/backend/memory"
	"github.com/cuemby/storebroker/pkg/config"
)

const sampleManifest = `
apiVersion: storebroker/v1
kind: Store
metadata:
  name: sessions
spec:
  tickInterval: 500ms
  requestTimeout: 5s
  backend:
    kind: sqlite
    path: /var/lib/storebroker/sessions.db
`

func TestParseManifest(t *testing.T) {
	cfg, err := config.Parse([]byte(sampleManifest))
	require.NoError(t, err)
	assert.Equal(t, "sessions", cfg.Name)
	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, config.BackendSQLite, cfg.Backend.Kind)
	assert.Equal(t, "/var/lib/storebroker/sessions.db", cfg.Backend.Path)
	assert.Equal(t, "master", cfg.Role)
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
kind: Store
metadata:
  name: minimal
spec: {}
`))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTickInterval, cfg.TickInterval)
	assert.Equal(t, config.DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, config.BackendMemory, cfg.Backend.Kind)
}

func TestParseRejectsWrongKind(t *testing.T) {
	_, err := config.Parse([]byte(`
kind: Service
metadata:
  name: x
`))
	require.Error(t, err)
}

func TestParseRequiresName(t *testing.T) {
	_, err := config.Parse([]byte(`
kind: Store
metadata: {}
`))
	require.Error(t, err)
}

func TestParseGeneratesCloneIDWhenMissing(t *testing.T) {
	cfg, err := config.Parse([]byte(`
kind: Store
metadata:
  name: replica
spec:
  role: clone
`))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.CloneID)
}

func TestOpenBackendCloneAlwaysMemory(t *testing.T) {
	cfg, err := config.Parse([]byte(`
kind: Store
metadata:
  name: replica
spec:
  role: clone
  backend:
    kind: sqlite
    path: /ignored.db
`))
	require.NoError(t, err)

	b, err := config.OpenBackend(cfg)
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &memory.Backend{}, b)
}
