package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// DefaultRedisPrefix is the key prefix used when a Redis location names no
// dataset.
const DefaultRedisPrefix = "annodiff"

// ErrDatasetNotFound is returned when a Redis prefix holds no dataset.
var ErrDatasetNotFound = errors.New("dataset not found")

// Redis is a Source backed by a Redis database. A dataset with prefix p is
// stored as:
//
//	p:name        string, dataset name
//	p:labels      list, label vocabulary in order
//	p:items       set, item ids
//	p:item:<id>   string, the item in manifest (YAML) form
//
// Name and labels are read once by OpenRedis; items are fetched on demand.
type Redis struct {
	client *redis.Client
	prefix string
	name   string
	labels annotation.Vocabulary
}

// OpenRedis opens the dataset stored under prefix.
func OpenRedis(ctx context.Context, client *redis.Client, prefix string) (*Redis, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	r := &Redis{client: client, prefix: prefix}

	pipe := client.Pipeline()
	exists := pipe.Exists(ctx, r.nameKey(), r.itemsKey())
	name := pipe.Get(ctx, r.nameKey())
	labels := pipe.LRange(ctx, r.labelsKey(), 0, -1)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis read failed: %w", err)
	}
	if exists.Val() == 0 {
		return nil, fmt.Errorf("%w: redis prefix %q", ErrDatasetNotFound, prefix)
	}

	r.name = name.Val()
	if r.name == "" {
		r.name = prefix
	}
	r.labels = annotation.Vocabulary(labels.Val())
	return r, nil
}

// Name implements Source.
func (r *Redis) Name() string { return r.name }

// Labels implements Source.
func (r *Redis) Labels() annotation.Vocabulary { return r.labels }

// ItemIDs implements Source. The ids are returned sorted.
func (r *Redis) ItemIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.itemsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Item implements Source.
func (r *Redis) Item(ctx context.Context, id string) (*annotation.Item, error) {
	data, err := r.client.Get(ctx, r.itemKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %q: %w", r.name, id, ErrItemNotFound)
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var mi manifestItem
	if err := yaml.Unmarshal(data, &mi); err != nil {
		return nil, fmt.Errorf("%w: item %q: %v", ErrInvalidManifest, id, err)
	}
	item, err := mi.toItem(r.labels, "")
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) nameKey() string { return r.prefix + ":name" }
func (r *Redis) labelsKey() string { return r.prefix + ":labels" }
func (r *Redis) itemsKey() string { return r.prefix + ":items" }
func (r *Redis) itemKey(id string) string { return r.prefix + ":item:" + id }

// Publish validates manifest data and stores it under prefix, replacing any
// dataset already there. Relative image paths are resolved against file's
// directory before they are stored.
func Publish(ctx context.Context, client *redis.Client, prefix string, data []byte, file string) error {
	m, err := Parse(data, file)
	if err != nil {
		return err
	}
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidManifest, file, err)
	}

	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	r := &Redis{client: client, prefix: prefix}

	old, err := client.SMembers(ctx, r.itemsKey()).Result()
	if err != nil {
		return fmt.Errorf("redis smembers failed: %w", err)
	}

	baseDir := ""
	if file != "" {
		baseDir = filepath.Dir(file)
	}

	pipe := client.TxPipeline()
	for _, id := range old {
		pipe.Del(ctx, r.itemKey(id))
	}
	pipe.Del(ctx, r.nameKey(), r.labelsKey(), r.itemsKey())
	pipe.Set(ctx, r.nameKey(), m.Name(), 0)
	if len(mf.Labels) > 0 {
		labels := make([]any, len(mf.Labels))
		for i, l := range mf.Labels {
			labels[i] = l
		}
		pipe.RPush(ctx, r.labelsKey(), labels...)
	}
	for _, mi := range mf.Items {
		mi.Image = resolveImage(baseDir, mi.Image)
		encoded, err := yaml.Marshal(mi)
		if err != nil {
			return fmt.Errorf("failed to encode item %q: %w", mi.ID, err)
		}
		pipe.Set(ctx, r.itemKey(mi.ID), encoded, 0)
		pipe.SAdd(ctx, r.itemsKey(), mi.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// IsRedisLocation reports whether location is a redis:// or rediss:// URL.
func IsRedisLocation(location string) bool {
	return strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://")
}

// RedisClient creates a client for a Redis location such as
// redis://localhost:6379/0?dataset=ground-truth. The dataset query parameter
// is returned as the key prefix; the rest of the URL is handed to
// redis.ParseURL.
func RedisClient(location string) (*redis.Client, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("invalid redis location: %w", err)
	}
	q := u.Query()
	prefix := q.Get("dataset")
	q.Del("dataset")
	u.RawQuery = q.Encode()

	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, "", fmt.Errorf("invalid redis location: %w", err)
	}
	return redis.NewClient(opts), prefix, nil
}

// Open returns the dataset at location: a Redis URL, a manifest file, or a
// directory holding one. Release it with Close.
func Open(ctx context.Context, location string) (Source, error) {
	if !IsRedisLocation(location) {
		m, err := Load(location)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	client, prefix, err := RedisClient(location)
	if err != nil {
		return nil, err
	}
	src, err := OpenRedis(ctx, client, prefix)
	if err != nil {
		client.Close()
		return nil, err
	}
	return src, nil
}

// Close releases resources held by src, if any.
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ Source = (*Redis)(nil)
