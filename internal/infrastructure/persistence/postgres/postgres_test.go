package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Equal(t,
		"host=localhost port=5432 dbname=attendance user=postgres password=secret sslmode=disable connect_timeout=5",
		cfg.DSN())

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}

func TestConfig_PoolConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConns = 7
	cfg.MaxConnLifetime = 10 * time.Minute

	pc, err := cfg.PoolConfig()
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 10*time.Minute, pc.MaxConnLifetime)
}

func TestConfig_PoolConfigRejectsBadURL(t *testing.T) {
	cfg := Config{URL: "postgres://%zz"}
	_, err := cfg.PoolConfig()
	assert.Error(t, err)
}

func TestMigrations_Ordered(t *testing.T) {
	migs := Migrations()
	require.NotEmpty(t, migs)
	for i, m := range migs {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
	}
	assert.Contains(t, migs[0].UpSQL, "CREATE TABLE IF NOT EXISTS documents")
}

// Integration tests run only against a real database.
func testConnection(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv("ATTENDANCE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ATTENDANCE_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := NewConnection(ctx, Config{URL: url}, nil)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return conn
}

func TestDocumentRepository_RoundTrip(t *testing.T) {
	conn := testConnection(t)
	repo := NewDocumentRepository(conn)
	ctx := context.Background()

	_, err := conn.Pool().Exec(ctx, `DELETE FROM documents WHERE name = 'reminders'`)
	require.NoError(t, err)

	_, err = repo.Read(ctx, document.Reminders)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, repo.Write(ctx, document.Reminders, []byte(`{"reminders":{}}`)))
	require.NoError(t, repo.Write(ctx, document.Reminders, []byte(`{"reminders":{"sem1":[]}}`)))

	body, err := repo.Read(ctx, document.Reminders)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reminders":{"sem1":[]}}`, string(body))

	status, err := NewMigrator(conn).Status(ctx)
	require.NoError(t, err)
	for _, m := range status {
		assert.True(t, m.IsApplied)
	}
}

func TestDocumentRepository_RejectsInvalidJSON(t *testing.T) {
	repo := NewDocumentRepository(&Connection{})
	err := repo.Write(context.Background(), document.Semesters, []byte("{"))
	assert.Error(t, err)
}
