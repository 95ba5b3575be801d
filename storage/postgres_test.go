package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresBackendContract needs a docker daemon. Enable with KB_TESTCONTAINERS=1.
func TestPostgresBackendContract(t *testing.T) {
	if os.Getenv("KB_TESTCONTAINERS") != "1" {
		t.Skip("set KB_TESTCONTAINERS=1 to run against a postgres container")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kb",
				"POSTGRES_PASSWORD": "kb",
				"POSTGRES_DB":       "kb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s user=kb password=kb dbname=kb port=%s sslmode=disable TimeZone=UTC", host, port.Port())
	backend, err := OpenGorm(DriverPostgres, dsn)
	require.NoError(t, err)
	defer backend.Close()

	runContract(t, ctx, backend)
}
