package services

import (
	"testing"

	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSeedData(t *testing.T) {
	data, err := ParseSeedData(defaultSeedData)
	require.NoError(t, err)

	providers := map[string]bool{}
	for _, it := range data.IntegrationTypes {
		providers[it.Provider] = true
	}
	for _, p := range integrations.NewRegistry(integrations.ClientOptions{}).Providers() {
		assert.True(t, providers[p], "catalog is missing provider %s", p)
	}

	var owners int
	emails := map[string]bool{}
	for _, u := range data.Users {
		assert.False(t, emails[u.Email], "duplicate seed user %s", u.Email)
		emails[u.Email] = true
		if u.Role == models.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)

	for _, p := range data.Pods {
		assert.True(t, emails[p.Manager], "pod manager %s is not a seed user", p.Manager)
		for _, m := range p.Members {
			assert.True(t, emails[m], "pod member %s is not a seed user", m)
		}
	}

	for _, a := range data.Accounts {
		for _, j := range a.Jobs {
			if j.RateMin != nil && j.RateMax != nil {
				assert.LessOrEqual(t, *j.RateMin, *j.RateMax, j.Title)
			}
		}
	}

	require.NotEmpty(t, data.Courses)
	assert.Equal(t, "recruiting-fundamentals", courseSlug(data.Courses[0].Title))
}

func TestParseSeedDataRejectsIncomplete(t *testing.T) {
	_, err := ParseSeedData([]byte("password: x\n"))
	assert.Error(t, err)

	_, err = ParseSeedData([]byte("organization:\n  slug: demo\n"))
	assert.Error(t, err)

	_, err = ParseSeedData([]byte("organization: [\n"))
	assert.Error(t, err)
}
