package elector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/romvault/internal/model"
)

func TestElectPicksEarliestRegionMatch(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (Europe)", Regions: []string{"Europe"}, Completion: model.CompletionComplete},
		{ID: 2, Name: "Game (USA)", Regions: []string{"USA"}, Completion: model.CompletionComplete},
		{ID: 3, Name: "Game (Japan)", Regions: []string{"Japan"}, Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA", "Europe", "Japan"}}

	winner, ignored := Elect(cluster, settings)
	require.NotNil(t, winner)
	assert.Equal(t, int64(2), winner.ID)
	assert.Len(t, ignored, 2)
}

func TestElectIneligibleWhenNoRegionMatches(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (Brazil)", Regions: []string{"Brazil"}, Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA", "Europe"}}

	winner, ignored := Elect(cluster, settings)
	assert.Nil(t, winner)
	assert.Equal(t, cluster, ignored)
}

func TestElectPrefersParentOnTie(t *testing.T) {
	t.Parallel()

	parentID := int64(1)
	cluster := []model.Game{
		{ID: 1, Name: "Game", Regions: []string{"USA"}, Completion: model.CompletionComplete},
		{ID: 2, Name: "Game (Alt)", Regions: []string{"USA"}, ParentID: &parentID, Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA"}, PreferParents: true}

	winner, _ := Elect(cluster, settings)
	require.NotNil(t, winner)
	assert.Equal(t, int64(1), winner.ID)
}

func TestElectPrefersNewerVersion(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (Rev 1)", Regions: []string{"USA"}, Revision: "1", Completion: model.CompletionComplete},
		{ID: 2, Name: "Game (Rev 2)", Regions: []string{"USA"}, Revision: "2", Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA"}, PreferVersions: PreferVersionsNew}

	winner, _ := Elect(cluster, settings)
	require.NotNil(t, winner)
	assert.Equal(t, int64(2), winner.ID)
}

func TestElectLanguageFilterExcludesNonIntersecting(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (En)", Regions: []string{"USA"}, Languages: []string{"En"}, Completion: model.CompletionComplete},
		{ID: 2, Name: "Game (Fr)", Regions: []string{"USA"}, Languages: []string{"Fr"}, Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA"}, Languages: []string{"en"}}

	winner, ignored := Elect(cluster, settings)
	require.NotNil(t, winner)
	assert.Equal(t, int64(1), winner.ID)
	require.Len(t, ignored, 1)
	assert.Equal(t, int64(2), ignored[0].ID)
}

func TestElectStrictFalseDropsIncompleteGames(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (USA)", Regions: []string{"USA"}, Completion: model.CompletionPartial},
		{ID: 2, Name: "Game (Europe)", Regions: []string{"Europe"}, Completion: model.CompletionComplete},
	}
	settings := Settings{RegionsOne: []string{"USA", "Europe"}, RegionsOneStrict: false}

	winner, _ := Elect(cluster, settings)
	require.NotNil(t, winner)
	assert.Equal(t, int64(2), winner.ID)
}

func TestElectClusterFormatsReport(t *testing.T) {
	t.Parallel()

	cluster := []model.Game{
		{ID: 1, Name: "Game (USA)", Regions: []string{"USA"}, Completion: model.CompletionComplete},
		{ID: 2, Name: "Game (Europe)", Regions: []string{"Europe"}, Completion: model.CompletionComplete},
	}
	result := ElectCluster("Game", cluster, Settings{RegionsOne: []string{"USA"}})

	assert.Equal(t, "Game", result.ClusterParent)
	assert.Equal(t, "Game (USA)", result.Winner)
	assert.Equal(t, []string{"Game (Europe)"}, result.Ignored)
}
