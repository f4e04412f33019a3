//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/migrations"
)

// startPostgres runs a disposable PostgreSQL container with the schema applied.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("harvester_test"),
		tcpostgres.WithUsername("harvester"),
		tcpostgres.WithPassword("harvester"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	require.NoError(t, err)
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migration failed: %v", err)
	}
	_, _ = m.Close()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPgCorpusRepository_Integration(t *testing.T) {
	pool := startPostgres(t)
	repo := NewPgCorpusRepository(pool)
	ctx := context.Background()

	c := newTestCorpus()
	require.NoError(t, repo.SaveCorpus(ctx, c))

	err := repo.SaveCorpus(ctx, c)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := repo.LoadCorpus(ctx, testRunID.String())
	require.NoError(t, err)
	assert.Equal(t, c.Records, got.Records)
	assert.Equal(t, c.Metadata.Query, got.Metadata.Query)
	assert.Equal(t, c.Metadata.Sources, got.Metadata.Sources)
	assert.True(t, c.Metadata.StartedAt.Equal(got.Metadata.StartedAt))

	runs, total, err := repo.ListRuns(ctx, RunFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].RecordCount)

	require.NoError(t, repo.DeleteRun(ctx, testRunID.String()))
	_, err = repo.GetRun(ctx, testRunID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPgCorpusRepository_IntegrationRollsBackFailedBatch(t *testing.T) {
	pool := startPostgres(t)
	repo := NewPgCorpusRepository(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := newTestCorpus()
	c.Metadata.Sources = append(c.Metadata.Sources, c.Metadata.Sources[0])

	require.Error(t, repo.SaveCorpus(ctx, c))

	_, err := repo.GetRun(ctx, testRunID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
