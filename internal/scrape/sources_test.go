package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"joblens-engine/internal/config"
	"joblens-engine/internal/domain"
)

type nopSource struct{ name string }

func (n nopSource) Name() string { return n.name }
func (n nopSource) List(context.Context, Company) ([]domain.ListingSummary, error) {
	return nil, nil
}
func (n nopSource) Detail(context.Context, Company, domain.ListingSummary) (domain.Details, error) {
	return domain.Details{}, nil
}

func testFactory() SourceFactory {
	return SourceFactory{
		Google:     func(config.GoogleCfg) Source { return &nopSource{"google"} },
		Greenhouse: func() Source { return &nopSource{"greenhouse"} },
		Lever:      func() Source { return &nopSource{"lever"} },
		Ashby:      func() Source { return &nopSource{"ashby"} },
		Workday:    func() Source { return &nopSource{"workday"} },
	}
}

func TestBuildTargets(t *testing.T) {
	var cfg config.Config
	cfg.Sources.Google.Enabled = true
	cfg.Sources.Google.Queries = []string{"sre"}
	cfg.Sources.Lever.Enabled = true
	cfg.Sources.Lever.Companies = []config.Company{
		{Slug: "acme", Name: "Acme"},
		{Slug: "globex", Name: "Globex"},
	}
	// enabled but empty: nothing to run
	cfg.Sources.Greenhouse.Enabled = true

	targets := testFactory().BuildTargets(cfg)
	require.Len(t, targets, 3)
	require.Equal(t, "google", targets[0].Source.Name())
	require.Equal(t, "Google", targets[0].Company.Name)
	require.Equal(t, "lever", targets[1].Source.Name())
	require.Equal(t, "Acme", targets[1].Company.Name)
	require.Equal(t, "Globex", targets[2].Company.Name)

	// both lever targets share one scraper instance
	require.Same(t, targets[1].Source, targets[2].Source)
}

func TestBuildTargetsAllDisabled(t *testing.T) {
	var cfg config.Config
	require.Empty(t, testFactory().BuildTargets(cfg))
}

func TestFindTarget(t *testing.T) {
	targets := []Target{
		{Source: nopSource{"lever"}, Company: Company{Slug: "acme", Name: "Acme"}},
	}

	got, ok := FindTarget(targets, "Acme")
	require.True(t, ok)
	require.Equal(t, "acme", got.Company.Slug)

	_, ok = FindTarget(targets, "acme")
	require.False(t, ok, "match is case-exact on the display name")
}
