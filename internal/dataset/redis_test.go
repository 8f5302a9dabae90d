package dataset

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// setupRedis starts a miniredis server and returns a client connected to it.
func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedis_PublishAndRead(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()

	file := filepath.Join("data", "gt", "dataset.yaml")
	require.NoError(t, Publish(ctx, client, "gt", []byte(sampleManifest), file))

	ds, err := OpenRedis(ctx, client, "gt")
	require.NoError(t, err)
	assert.Equal(t, "ground-truth", ds.Name())
	assert.Equal(t, annotation.Vocabulary{"cat", "dog"}, ds.Labels())

	ids, err := ds.ItemIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"img_001", "img_002"}, ids)

	fromFile, err := Parse([]byte(sampleManifest), file)
	require.NoError(t, err)
	for _, id := range ids {
		want, err := fromFile.Item(ctx, id)
		require.NoError(t, err)
		got, err := ds.Item(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
}

func TestRedis_ItemNotFound(t *testing.T) {
	client, _ := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, Publish(ctx, client, "gt", []byte(sampleManifest), ""))

	ds, err := OpenRedis(ctx, client, "gt")
	require.NoError(t, err)
	_, err = ds.Item(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestRedis_DatasetNotFound(t *testing.T) {
	client, _ := setupRedis(t)
	_, err := OpenRedis(context.Background(), client, "nothing-here")
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestRedis_PublishReplaces(t *testing.T) {
	client, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, Publish(ctx, client, "", []byte(sampleManifest), ""))
	require.NoError(t, Publish(ctx, client, "", []byte("name: small\nitems:\n  - id: only\n"), ""))

	assert.False(t, mr.Exists(DefaultRedisPrefix+":item:img_001"))

	ds, err := OpenRedis(ctx, client, "")
	require.NoError(t, err)
	assert.Equal(t, "small", ds.Name())
	assert.Empty(t, ds.Labels())

	ids, err := ds.ItemIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, ids)
}

func TestRedis_PublishRejectsInvalidManifest(t *testing.T) {
	client, mr := setupRedis(t)
	err := Publish(context.Background(), client, "gt", []byte("items:\n  - id: a\n  - id: a\n"), "")
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.False(t, mr.Exists("gt:name"))
}

func TestOpen(t *testing.T) {
	_, mr := setupRedis(t)
	ctx := context.Background()

	client, prefix, err := RedisClient("redis://" + mr.Addr() + "/0?dataset=gt")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, "gt", prefix)
	require.NoError(t, Publish(ctx, client, prefix, []byte(sampleManifest), ""))

	src, err := Open(ctx, "redis://"+mr.Addr()+"/0?dataset=gt")
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, src)
	assert.Equal(t, "ground-truth", src.Name())
	assert.NoError(t, Close(src))

	dir := writeManifest(t, "dataset.yaml", sampleManifest)
	src, err = Open(ctx, dir)
	require.NoError(t, err)
	assert.IsType(t, &Manifest{}, src)
	assert.NoError(t, Close(src))

	_, err = Open(ctx, "redis://"+mr.Addr()+"/0?dataset=missing")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	_, err = Open(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIsRedisLocation(t *testing.T) {
	assert.True(t, IsRedisLocation("redis://localhost:6379"))
	assert.True(t, IsRedisLocation("rediss://cache.example.com:6380/2?dataset=gt"))
	assert.False(t, IsRedisLocation("./datasets/gt"))
	assert.False(t, IsRedisLocation("/tmp/redis/dataset.yaml"))
}
