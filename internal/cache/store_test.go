package cache_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/cache/cachetest"
)

type memorySuite struct {
	cachetest.StoreSuite
}

func (s *memorySuite) SetupTest() {
	s.NewStore = func() cache.Store { return cache.NewMemoryStore() }
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(memorySuite))
}

type fileSuite struct {
	cachetest.StoreSuite
}

func (s *fileSuite) SetupTest() {
	s.NewStore = func() cache.Store {
		st, err := cache.NewFileStore(s.T().TempDir())
		s.Require().NoError(err)
		return st
	}
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(fileSuite))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	st, err := cache.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "octo_repo_clusters", []byte(`[]`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "octo_repo_clusters.json", entries[0].Name())
}

func TestMemoryStoreCountsPuts(t *testing.T) {
	st := cache.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, st.Put(ctx, "b", []byte("1")))
	require.NoError(t, st.Put(ctx, "a", []byte("2")))
	require.Equal(t, 2, st.Puts())
	require.Equal(t, []string{"a", "b"}, st.Keys())
}

type redisSuite struct {
	cachetest.StoreSuite
}

func (s *redisSuite) SetupTest() {
	url := os.Getenv("IDEAFORGE_TEST_REDIS_URL")
	if url == "" {
		s.T().Skip("IDEAFORGE_TEST_REDIS_URL not set")
	}
	s.NewStore = func() cache.Store {
		st, err := cache.NewRedisStore(context.Background(), cache.RedisConfig{
			URL:       url,
			KeyPrefix: "ideaforge-test:" + s.T().Name() + ":",
		})
		s.Require().NoError(err)
		s.T().Cleanup(func() { _ = st.Close() })
		return st
	}
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(redisSuite))
}
