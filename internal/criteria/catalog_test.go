package criteria

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/rules"
)

func TestLoadCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Greater(t, c.Len(), 70)

	cfg, ok := c.Get("hiv")
	require.True(t, ok)
	assert.Equal(t, "hiv_criteria", cfg.RuleID)
	assert.NotEmpty(t, cfg.DataPoints)

	_, ok = c.Get("no_such_criterion")
	assert.False(t, ok)
}

// Every catalog entry must dispatch to an installed rule, otherwise
// the criterion would silently land in MD discretion at runtime.
func TestCatalogRuleBindingsResolve(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := rules.NewRegistry(log)

	for _, name := range c.Names() {
		cfg, ok := c.Get(name)
		require.True(t, ok)
		assert.True(t, reg.Has(cfg.RuleID), "criterion %s references unknown rule %s", name, cfg.RuleID)
	}
}

func TestTissueTypesFor(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []domain.TissueType{domain.MUSCULOSKELETAL, domain.SKIN}, c.TissueTypesFor("tattoo"))
	assert.Equal(t, []domain.TissueType{domain.BOTH}, c.TissueTypesFor("hiv"))
	assert.Equal(t, []domain.TissueType{domain.BOTH}, c.TissueTypesFor("unknown"))
}
