package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls map[string]int
	err   error
}

func (s *countingSource) fetch(name string) ([]RawRecord, error) {
	s.calls[name]++
	if s.err != nil {
		return nil, s.err
	}
	return []RawRecord{{"id": "1", "name": name}}, nil
}

func (s *countingSource) Categories(context.Context) ([]RawRecord, error) { return s.fetch("categories") }
func (s *countingSource) ExperienceLevels(context.Context) ([]RawRecord, error) {
	return s.fetch("experience_levels")
}
func (s *countingSource) Countries(context.Context) ([]RawRecord, error) { return s.fetch("countries") }

func TestCachedReferenceSourceServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{calls: map[string]int{}}
	cached := NewCachedReferenceSource(src, client, time.Hour, nil)
	ctx := context.Background()

	first, err := cached.Categories(ctx)
	require.NoError(t, err)
	second, err := cached.Categories(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls["categories"])
	assert.Equal(t, time.Hour, mr.TTL("reference:categories"))

	mr.FastForward(2 * time.Hour)
	_, err = cached.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls["categories"])
}

func TestCachedReferenceSourceFallsThroughOnRedisFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{calls: map[string]int{}}
	cached := NewCachedReferenceSource(src, client, time.Hour, nil)
	mr.SetError("LOADING")

	records, err := cached.Countries(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, src.calls["countries"])
}

func TestCachedReferenceSourceDoesNotCacheErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	src := &countingSource{calls: map[string]int{}, err: errors.New("down")}
	cached := NewCachedReferenceSource(src, client, time.Hour, nil)

	_, err := cached.ExperienceLevels(context.Background())
	assert.Error(t, err)
	assert.False(t, mr.Exists("reference:experience_levels"))
}
