// Package cachetest provides a conformance suite for cache.Store implementations.
package cachetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/cache"
)

// StoreSuite exercises the Store contract. Embed it and set NewStore in SetupTest.
type StoreSuite struct {
	suite.Suite
	// NewStore returns a fresh, empty store for each test.
	NewStore func() cache.Store
}

func (s *StoreSuite) store() cache.Store {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	return s.NewStore()
}

// TestGetMissing checks that absent keys are reported without error.
func (s *StoreSuite) TestGetMissing() {
	st := s.store()
	ctx := context.Background()

	data, ok, err := st.Get(ctx, "missing")
	s.NoError(err)
	s.False(ok)
	s.Nil(data)

	exists, err := st.Exists(ctx, "missing")
	s.NoError(err)
	s.False(exists)
}

// TestPutGetOverwrite checks round trips and last-write-wins.
func (s *StoreSuite) TestPutGetOverwrite() {
	st := s.store()
	ctx := context.Background()

	s.Require().NoError(st.Put(ctx, "octo_repo_issues", []byte(`[1]`)))
	exists, err := st.Exists(ctx, "octo_repo_issues")
	s.NoError(err)
	s.True(exists)

	s.Require().NoError(st.Put(ctx, "octo_repo_issues", []byte(`[1,2]`)))
	data, ok, err := st.Get(ctx, "octo_repo_issues")
	s.NoError(err)
	s.True(ok)
	s.Equal(`[1,2]`, string(data))
}

// TestDelete checks that removed keys read as absent and that deleting twice is allowed.
func (s *StoreSuite) TestDelete() {
	st := s.store()
	ctx := context.Background()

	s.Require().NoError(st.Put(ctx, "octo_repo_clusters", []byte(`[]`)))
	s.Require().NoError(st.Put(ctx, "octo_repo_issues", []byte(`[1]`)))
	s.Require().NoError(st.Delete(ctx, "octo_repo_clusters"))

	exists, err := st.Exists(ctx, "octo_repo_clusters")
	s.NoError(err)
	s.False(exists)
	_, ok, err := st.Get(ctx, "octo_repo_clusters")
	s.NoError(err)
	s.False(ok)

	exists, err = st.Exists(ctx, "octo_repo_issues")
	s.NoError(err)
	s.True(exists, "other keys survive")

	s.NoError(st.Delete(ctx, "octo_repo_clusters"))
	s.NoError(st.Delete(ctx, "never_written"))
}

// TestInvalidKeys checks key validation on every operation.
func (s *StoreSuite) TestInvalidKeys() {
	st := s.store()
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "a/b", "sp ace"} {
		s.Run(fmt.Sprintf("key %q", key), func() {
			_, _, err := st.Get(ctx, key)
			s.True(errors.Is(err, cache.ErrInvalidKey))
			s.True(errors.Is(st.Put(ctx, key, []byte("x")), cache.ErrInvalidKey))
			_, err = st.Exists(ctx, key)
			s.True(errors.Is(err, cache.ErrInvalidKey))
			s.True(errors.Is(st.Delete(ctx, key), cache.ErrInvalidKey))
		})
	}
}

// TestJSONHelpers checks the typed helpers against the store.
func (s *StoreSuite) TestJSONHelpers() {
	st := s.store()
	ctx := context.Background()

	type entry struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}

	var got entry
	ok, err := cache.GetJSON(ctx, st, "summary_1", &got)
	s.NoError(err)
	s.False(ok)

	s.Require().NoError(cache.PutJSON(ctx, st, "summary_1", entry{Name: "a", Score: 3}))
	ok, err = cache.GetJSON(ctx, st, "summary_1", &got)
	s.NoError(err)
	s.True(ok)
	s.Equal(entry{Name: "a", Score: 3}, got)
}

// TestPrefix checks that prefixed views do not collide.
func (s *StoreSuite) TestPrefix() {
	st := s.store()
	ctx := context.Background()

	a := cache.WithPrefix(st, "a.")
	b := cache.WithPrefix(st, "b.")
	s.Require().NoError(a.Put(ctx, "k", []byte("1")))

	exists, err := b.Exists(ctx, "k")
	s.NoError(err)
	s.False(exists)

	data, ok, err := st.Get(ctx, "a.k")
	s.NoError(err)
	s.True(ok)
	s.Equal("1", string(data))

	s.Require().NoError(b.Delete(ctx, "k"))
	exists, err = a.Exists(ctx, "k")
	s.NoError(err)
	s.True(exists, "delete through another prefix leaves the key")
	s.Require().NoError(a.Delete(ctx, "k"))
	exists, err = st.Exists(ctx, "a.k")
	s.NoError(err)
	s.False(exists)
}

// TestConcurrentPuts checks that parallel writers leave a complete value.
func (s *StoreSuite) TestConcurrentPuts() {
	st := s.store()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = st.Put(ctx, "shared", []byte(fmt.Sprintf(`{"writer":%d}`, i)))
		}(i)
	}
	wg.Wait()

	data, ok, err := st.Get(ctx, "shared")
	s.NoError(err)
	s.True(ok)
	s.Regexp(`^\{"writer":\d\}$`, string(data))
}
