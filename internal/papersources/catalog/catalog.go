// Package catalog wires every literature source from configuration: one
// adapter, one rate limiter and one normalizer per source.
package catalog

import (
	"github.com/helixir/disease-literature-harvester/internal/config"
	"github.com/helixir/disease-literature-harvester/internal/domain"
	"github.com/helixir/disease-literature-harvester/internal/normalize"
	"github.com/helixir/disease-literature-harvester/internal/papersources"
	"github.com/helixir/disease-literature-harvester/internal/papersources/biorxiv"
	"github.com/helixir/disease-literature-harvester/internal/papersources/core"
	"github.com/helixir/disease-literature-harvester/internal/papersources/europepmc"
	"github.com/helixir/disease-literature-harvester/internal/papersources/openalex"
	"github.com/helixir/disease-literature-harvester/internal/papersources/pubmed"
	"github.com/helixir/disease-literature-harvester/internal/papersources/springer"
)

// Catalog bundles the per-source components a harvest needs.
type Catalog struct {
	Registry   *papersources.Registry
	Limiters   *papersources.LimiterSet
	Normalizer *normalize.Dispatcher
}

// New builds adapters, limiters and the normalizer for every source.
// Disabled sources are still registered so that a query naming one fails
// with a clear configuration error.
func New(cfg config.SourcesConfig, yearsBack int) *Catalog {
	registry := papersources.NewRegistry()
	for _, a := range Adapters(cfg, yearsBack) {
		registry.Register(a)
	}
	return &Catalog{
		Registry:   registry,
		Limiters:   papersources.NewLimiterSet(Limits(cfg)),
		Normalizer: normalize.NewDispatcher(Normalizers()),
	}
}

// Adapters constructs one adapter per source.
func Adapters(cfg config.SourcesConfig, yearsBack int) []papersources.Adapter {
	return []papersources.Adapter{
		pubmed.New(pubmed.Config{
			BaseURL:  cfg.PubMed.BaseURL,
			APIKey:   cfg.PubMed.APIKey,
			Timeout:  cfg.PubMed.Timeout,
			PageSize: cfg.PubMed.PageSize,
			Enabled:  cfg.PubMed.Enabled,
		}),
		europepmc.New(europepmc.Config{
			BaseURL:  cfg.EuropePMC.BaseURL,
			Timeout:  cfg.EuropePMC.Timeout,
			PageSize: cfg.EuropePMC.PageSize,
			Enabled:  cfg.EuropePMC.Enabled,
		}),
		openalex.New(openalex.Config{
			BaseURL:  cfg.OpenAlex.BaseURL,
			Email:    cfg.Mailto,
			Timeout:  cfg.OpenAlex.Timeout,
			PageSize: cfg.OpenAlex.PageSize,
			Enabled:  cfg.OpenAlex.Enabled,
		}),
		core.New(core.Config{
			BaseURL:  cfg.Core.BaseURL,
			APIKey:   cfg.Core.APIKey,
			Timeout:  cfg.Core.Timeout,
			PageSize: cfg.Core.PageSize,
			Enabled:  cfg.Core.Enabled,
		}),
		biorxiv.New(biorxiv.Config{
			BaseURL:   cfg.BioRxiv.BaseURL,
			Timeout:   cfg.BioRxiv.Timeout,
			YearsBack: yearsBack,
			Enabled:   cfg.BioRxiv.Enabled,
		}),
		springer.New(springer.Config{
			BaseURL:  cfg.Springer.BaseURL,
			APIKey:   cfg.Springer.APIKey,
			Timeout:  cfg.Springer.Timeout,
			PageSize: cfg.Springer.PageSize,
			Enabled:  cfg.Springer.Enabled,
		}),
	}
}

// Limits returns the rate limit of every source.
func Limits(cfg config.SourcesConfig) map[domain.SourceID]papersources.LimitConfig {
	limits := make(map[domain.SourceID]papersources.LimitConfig)
	for _, id := range domain.AllSources() {
		sc, _ := cfg.Lookup(id)
		limits[id] = papersources.LimitConfig{
			RequestsPerWindow: sc.RequestsPerWindow,
			Window:            sc.Window,
			MaxConcurrent:     sc.MaxConcurrent,
		}
	}
	return limits
}

// Normalizers returns the normalize func of every source.
func Normalizers() map[domain.SourceID]normalize.Func {
	return map[domain.SourceID]normalize.Func{
		domain.SourcePubMed:    pubmed.Normalize,
		domain.SourceEuropePMC: europepmc.Normalize,
		domain.SourceOpenAlex:  openalex.Normalize,
		domain.SourceCore:      core.Normalize,
		domain.SourceBioRxiv:   biorxiv.Normalize,
		domain.SourceSpringer:  springer.Normalize,
	}
}
