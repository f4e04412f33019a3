package papersources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/internal/domain"
)

// mockAdapter is a minimal Adapter for registry tests.
type mockAdapter struct {
	id      domain.SourceID
	enabled bool
}

func (m *mockAdapter) FetchPage(ctx context.Context, req PageRequest) (*Page, error) {
	return &Page{Total: -1}, nil
}

func (m *mockAdapter) SourceID() domain.SourceID { return m.id }
func (m *mockAdapter) Name() string               { return m.id.DisplayName() }
func (m *mockAdapter) IsEnabled() bool            { return m.enabled }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	pubmed := &mockAdapter{id: domain.SourcePubMed, enabled: true}
	core := &mockAdapter{id: domain.SourceCore, enabled: false}
	openalex := &mockAdapter{id: domain.SourceOpenAlex, enabled: true}
	r.Register(pubmed)
	r.Register(core)
	r.Register(openalex)

	t.Run("get", func(t *testing.T) {
		assert.Same(t, pubmed, r.Get(domain.SourcePubMed))
		assert.Nil(t, r.Get(domain.SourceSpringer))
	})

	t.Run("all is sorted", func(t *testing.T) {
		all := r.All()
		require.Len(t, all, 3)
		assert.Equal(t, domain.SourceCore, all[0].SourceID())
		assert.Equal(t, domain.SourceOpenAlex, all[1].SourceID())
		assert.Equal(t, domain.SourcePubMed, all[2].SourceID())
	})

	t.Run("enabled", func(t *testing.T) {
		assert.Equal(t, []domain.SourceID{domain.SourceOpenAlex, domain.SourcePubMed}, r.Enabled())
	})

	t.Run("register replaces", func(t *testing.T) {
		replacement := &mockAdapter{id: domain.SourcePubMed, enabled: true}
		r.Register(replacement)
		assert.Same(t, replacement, r.Get(domain.SourcePubMed))
		r.Register(pubmed)
	})

	t.Run("resolve keeps order and drops duplicates", func(t *testing.T) {
		got, err := r.Resolve([]domain.SourceID{domain.SourcePubMed, domain.SourceOpenAlex, domain.SourcePubMed})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, domain.SourcePubMed, got[0].SourceID())
		assert.Equal(t, domain.SourceOpenAlex, got[1].SourceID())
	})

	t.Run("resolve rejects unregistered", func(t *testing.T) {
		_, err := r.Resolve([]domain.SourceID{domain.SourceSpringer})
		assert.True(t, errors.Is(err, domain.ErrSourceNotRegistered))
	})

	t.Run("resolve rejects disabled", func(t *testing.T) {
		_, err := r.Resolve([]domain.SourceID{domain.SourceCore})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})
}
