package catalog

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/domain"
)

func testSources() config.SourcesConfig {
	sc := config.SourceConfig{Enabled: true, RequestsPerWindow: 2, Window: time.Second, MaxConcurrent: 2}
	cfg := config.SourcesConfig{
		PubMed:    sc,
		EuropePMC: sc,
		OpenAlex:  sc,
		Core:      sc,
		BioRxiv:   sc,
		Springer:  sc,
	}
	cfg.Springer.APIKey = "sn-key"
	return cfg
}

func TestNew(t *testing.T) {
	c := New(testSources(), 5)

	assert.Len(t, c.Registry.All(), len(domain.AllSources()))
	for _, id := range domain.AllSources() {
		assert.NotNil(t, c.Registry.Get(id), id)
		assert.True(t, c.Normalizer.Supports(id), id)

		l, err := c.Limiters.For(id)
		require.NoError(t, err)
		assert.Equal(t, 2, l.Config().MaxConcurrent)
	}

	// CORE has no key in the test config.
	assert.NotContains(t, c.Registry.Enabled(), domain.SourceCore)
	assert.Contains(t, c.Registry.Enabled(), domain.SourceSpringer)

	_, err := c.Registry.Resolve([]domain.SourceID{domain.SourcePubMed, domain.SourceCore})
	assert.True(t, errors.Is(err, domain.ErrSourceNotRegistered))
}

func TestNew_DisabledSource(t *testing.T) {
	cfg := testSources()
	cfg.OpenAlex.Enabled = false

	c := New(cfg, 5)
	assert.NotContains(t, c.Registry.Enabled(), domain.SourceOpenAlex)

	adapters, err := c.Registry.Resolve([]domain.SourceID{domain.SourcePubMed, domain.SourceEuropePMC})
	require.NoError(t, err)
	assert.Len(t, adapters, 2)
}
