package store

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/model"
)

func fakeBundle() ensemble.Bundle {
	b := ensemble.Bundle{
		Version:   ensemble.BundleVersion,
		TrainedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		Metrics: map[string]model.ModelMetrics{
			model.ModelStacking: {Accuracy: 0.9, Precision: 0.8, Recall: 0.7, F1: 0.75, AUC: model.Some(0.93)},
		},
		Models: map[string]json.RawMessage{},
	}
	for i, name := range model.ModelNames {
		b.Models[name] = json.RawMessage(`{"n":` + string(rune('0'+i)) + `}`)
	}
	return b
}

func redisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, ""), mr
}

func sqliteStore(t *testing.T) *SQLiteStore {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "db", "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]ModelStore {
	rs, _ := redisStore(t)
	return map[string]ModelStore{
		KindFile:   NewFileStore(filepath.Join(t.TempDir(), "models")),
		KindSQLite: sqliteStore(t),
		KindRedis:  rs,
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			_, err := s.Load(ctx)
			require.ErrorIs(t, err, ErrNotFound)

			want := fakeBundle()
			require.NoError(t, s.Save(ctx, want))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want.Version, got.Version)
			assert.True(t, want.TrainedAt.Equal(got.TrainedAt))
			assert.Equal(t, want.Metrics, got.Metrics)
			assert.Equal(t, want.Models, got.Models)
		})
	}
}

func TestStores_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	for kind, s := range stores(t) {
		t.Run(kind, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, fakeBundle()))

			partial := fakeBundle()
			delete(partial.Models, model.ModelStacking)
			partial.Models[model.ModelLogistic] = json.RawMessage(`{"n":9}`)
			require.NoError(t, s.Save(ctx, partial))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got.Models, len(model.ModelNames)-1)
			assert.JSONEq(t, `{"n":9}`, string(got.Models[model.ModelLogistic]))
			_, ok := got.Models[model.ModelStacking]
			assert.False(t, ok)
		})
	}
}

func TestFileStore_CorruptManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte("{"), 0o644))
	_, err := NewFileStore(dir).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Key(t *testing.T) {
	s, mr := redisStore(t)
	require.NoError(t, s.Save(context.Background(), fakeBundle()))
	assert.True(t, mr.Exists(DefaultRedisKey))
	keys, err := mr.HKeys(DefaultRedisKey)
	require.NoError(t, err)
	assert.Len(t, keys, len(model.ModelNames)+1)
}

func trainingSet() model.Dataset {
	rng := rand.New(rand.NewSource(5))
	var ds model.Dataset
	for i := 0; i < 120; i++ {
		var row [model.RatioCount]model.Amount
		for j := range row {
			row[j] = model.Some(rng.NormFloat64())
		}
		label := 0
		if row[4].Value+0.3*rng.NormFloat64() > 0.4 {
			label = 1
		}
		ds.Append(row, label)
	}
	return ds
}

func TestFileStore_ScorerRoundTrip(t *testing.T) {
	ctx := context.Background()
	opts := ensemble.Options{ForestTrees: 5, ForestDepth: 3, BoostRounds: 5, BoostDepth: 2, MaxIter: 100}

	scorer := ensemble.New(opts)
	_, err := scorer.Train(ctx, trainingSet())
	require.NoError(t, err)
	b, err := scorer.Bundle()
	require.NoError(t, err)

	dir := t.TempDir()
	fs := NewFileStore(dir)
	require.NoError(t, fs.Save(ctx, b))

	loaded, err := fs.Load(ctx)
	require.NoError(t, err)
	restored := ensemble.New(opts)
	require.NoError(t, restored.Restore(loaded))

	var row [model.RatioCount]model.Amount
	row[4] = model.Some(1.2)
	want, err := scorer.Predict(row)
	require.NoError(t, err)
	got, err := restored.Predict(row)
	require.NoError(t, err)
	assert.InDelta(t, want.Final().Value, got.Final().Value, 1e-12)

	// 删掉一个模型文件后视为不完整
	require.NoError(t, os.Remove(filepath.Join(dir, model.ModelRandomForest+".json")))
	partial, err := fs.Load(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, ensemble.New(opts).Restore(partial), ensemble.ErrPersistence)
}

func TestFileStore_RejectsInterruptedSave(t *testing.T) {
	ctx := context.Background()
	opts := ensemble.Options{ForestTrees: 5, ForestDepth: 3, BoostRounds: 5, BoostDepth: 2, MaxIter: 100}

	older := ensemble.New(opts)
	_, err := older.Train(ctx, trainingSet())
	require.NoError(t, err)
	a, err := older.Bundle()
	require.NoError(t, err)

	newer := ensemble.New(opts)
	_, err = newer.Train(ctx, trainingSet())
	require.NoError(t, err)
	b, err := newer.Bundle()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, NewFileStore(dir).Save(ctx, a))

	// 新模型包只写完了前两个模型文件，清单仍是旧的
	staging := t.TempDir()
	require.NoError(t, NewFileStore(staging).Save(ctx, b))
	for _, name := range []string{model.ModelLogistic, model.ModelRandomForest} {
		data, err := os.ReadFile(filepath.Join(staging, name+".json"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644))
	}

	loaded, err := NewFileStore(dir).Load(ctx)
	require.NoError(t, err)
	restored := ensemble.New(opts)
	assert.ErrorIs(t, restored.Restore(loaded), ensemble.ErrPersistence)
	assert.False(t, restored.Ready())
}
