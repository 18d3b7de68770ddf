package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/ideaforge/internal/cache"
	"github.com/thebtf/ideaforge/internal/cache/cachetest"
)

// conformanceSuite runs the shared store contract against SQLite.
type conformanceSuite struct {
	cachetest.StoreSuite
}

func (s *conformanceSuite) SetupTest() {
	s.NewStore = func() cache.Store {
		st, err := NewStore(StoreConfig{Path: filepath.Join(s.T().TempDir(), "cache.db"), WALMode: true})
		s.Require().NoError(err)
		s.T().Cleanup(func() { _ = st.Close() })
		return st
	}
}

func TestConformanceSuite(t *testing.T) {
	suite.Run(t, new(conformanceSuite))
}

// StoreSuite is a test suite for SQLite-specific Store operations.
type StoreSuite struct {
	suite.Suite
	store *Store
	path  string
}

func (s *StoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "cache.db")
	var err error
	s.store, err = NewStore(StoreConfig{Path: s.path})
	s.Require().NoError(err)
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

// TestGetStmt tests prepared statement caching.
func (s *StoreSuite) TestGetStmt() {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "valid simple query", query: "SELECT 1"},
		{name: "valid query with parameter", query: querySelect},
		{name: "invalid query syntax", query: "SELECT * FROM nonexistent_table WHERE", wantErr: true},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			stmt, err := s.store.GetStmt(tt.query)
			if tt.wantErr {
				s.Error(err)
				s.Nil(stmt)
				return
			}
			s.NoError(err)
			s.NotNil(stmt)

			stmt2, err := s.store.GetStmt(tt.query)
			s.NoError(err)
			s.Same(stmt, stmt2)
		})
	}
}

// TestPersistsAcrossReopen tests that entries survive closing the store.
func (s *StoreSuite) TestPersistsAcrossReopen() {
	ctx := context.Background()
	s.Require().NoError(s.store.Put(ctx, "summary_42", []byte(`{"issue_id":42}`)))
	s.Require().NoError(s.store.Close())

	reopened, err := NewStore(StoreConfig{Path: s.path})
	s.Require().NoError(err)
	s.store = reopened

	data, ok, err := reopened.Get(ctx, "summary_42")
	s.NoError(err)
	s.True(ok)
	s.JSONEq(`{"issue_id":42}`, string(data))
}

// TestCountEntries tests prefix counting.
func (s *StoreSuite) TestCountEntries() {
	ctx := context.Background()
	for _, key := range []string{"cache.summary_1", "cache.summary_2", "octo_repo_issues"} {
		s.Require().NoError(s.store.Put(ctx, key, []byte("{}")))
	}

	n, err := s.store.CountEntries(ctx, "cache.")
	s.NoError(err)
	s.Equal(2, n)
}

// TestClose tests closing the store.
func (s *StoreSuite) TestClose() {
	_, err := s.store.GetStmt("SELECT 1")
	s.NoError(err)

	s.NoError(s.store.Close())
	s.Error(s.store.Ping())
	s.store = nil
}
