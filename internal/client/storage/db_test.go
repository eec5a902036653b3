package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listvault/internal/client/models"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigratesSchema(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	// All three collections usable right after Open.
	require.NoError(t, s.Metadata.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Records.Upsert(ctx, models.NewRecord("milk")))
	m := models.NewPendingMutation(models.ActionCreate, "key", "data")
	require.NoError(t, s.Queue.Append(ctx, &m))
}

func TestOpen_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "vault.db")
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.Metadata.Set(ctx, "salt", []byte("abc")))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Metadata.Get(ctx, "salt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestWithTx_RollsBackAllCollections(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx *Store) error {
		if err := tx.Records.Upsert(ctx, models.NewRecord("milk")); err != nil {
			return err
		}
		m := models.NewPendingMutation(models.ActionCreate, "k", "d")
		if err := tx.Queue.Append(ctx, &m); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	recs, err := s.Records.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	count, err := s.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWipeAll(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Metadata.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Records.Upsert(ctx, models.NewRecord("milk")))
	m := models.NewPendingMutation(models.ActionCreate, "key", "data")
	require.NoError(t, s.Queue.Append(ctx, &m))

	require.NoError(t, s.WipeAll(ctx))

	meta, err := s.Metadata.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, meta)

	recs, err := s.Records.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	count, err := s.Queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
