// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logics

import (
	"context"
	"testing"

	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

type mockModel map[[2]int]float32

func (m mockModel) Predict(userId, itemId int) float32 {
	return m[[2]int{userId, itemId}]
}

func newTestRatings() *dataset.Ratings {
	catalog := dataset.NewCatalog([]data.Item{
		{ItemId: 1, Title: "A"},
		{ItemId: 2, Title: "B"},
		{ItemId: 3, Title: "C"},
		{ItemId: 4, Title: "D", Genres: []string{"Drama"}},
		{ItemId: 5, Title: "E"},
		{ItemId: 6, Title: "F"},
	})
	return dataset.NewRatings(catalog, []data.Rating{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 1, ItemId: 4, Rating: 4},
		{UserId: 1, ItemId: 5, Rating: 4.5},
		{UserId: 1, ItemId: 6, Rating: 3},
		{UserId: 2, ItemId: 2, Rating: 4},
		{UserId: 2, ItemId: 5, Rating: 5},
		{UserId: 3, ItemId: 3, Rating: 2},
		{UserId: 3, ItemId: 6, Rating: 5},
	})
}

func newTestModel() mockModel {
	return mockModel{
		{1, 4}: 4.0,
		{1, 5}: 3.5,
		{2, 5}: 4.8,
	}
}

func newTestCollaborative(dedup string, perUserLimit int) *Collaborative {
	cfg := config.GetDefaultConfig()
	cfg.Recommend.Collaborative.Dedup = dedup
	cfg.Recommend.Collaborative.PerUserLimit = perUserLimit
	return NewCollaborative(cfg.Recommend)
}

func TestCollaborative_Neighbors(t *testing.T) {
	collaborative := newTestCollaborative(config.DedupMax, 5)
	ratings := newTestRatings()
	assert.Equal(t, []int{1, 2}, collaborative.Neighbors(ratings, []int{1, 2, 3}))
	assert.Equal(t, []int{1, 2}, collaborative.Neighbors(ratings, []int{5}))
	assert.Empty(t, collaborative.Neighbors(ratings, []int{3}))
}

func TestCollaborative_Recommend(t *testing.T) {
	ctx := context.Background()
	seeds := []string{"A", "B", "C"}

	result, err := newTestCollaborative(config.DedupMax, 5).Recommend(ctx, newTestRatings(), newTestModel(), seeds, 5)
	assert.NoError(t, err)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, []Recommendation{
		{ItemId: 5, Title: "E", Score: 4.8},
		{ItemId: 4, Title: "D", Genres: []string{"Drama"}, Score: 4.0},
	}, result.Items)

	result, err = newTestCollaborative(config.DedupSum, 5).Recommend(ctx, newTestRatings(), newTestModel(), seeds, 5)
	assert.NoError(t, err)
	assert.Equal(t, []string{"E", "D"}, titles(result.Items))
	assert.InDelta(t, 8.3, result.Items[0].Score, 1e-5)

	result, err = newTestCollaborative(config.DedupNone, 5).Recommend(ctx, newTestRatings(), newTestModel(), seeds, 5)
	assert.NoError(t, err)
	assert.Equal(t, []string{"E", "D", "E"}, titles(result.Items))

	result, err = newTestCollaborative(config.DedupNone, 5).Recommend(ctx, newTestRatings(), newTestModel(), seeds, 1)
	assert.NoError(t, err)
	assert.Equal(t, []string{"E"}, titles(result.Items))

	// idempotent
	again, err := newTestCollaborative(config.DedupNone, 5).Recommend(ctx, newTestRatings(), newTestModel(), seeds, 1)
	assert.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestCollaborative_PerUserLimit(t *testing.T) {
	result, err := newTestCollaborative(config.DedupNone, 1).Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"A", "B", "C"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, []string{"E", "D"}, titles(result.Items))
	assert.Equal(t, []float32{4.8, 4.0}, []float32{result.Items[0].Score, result.Items[1].Score})
}

func TestCollaborative_ExcludeSeeds(t *testing.T) {
	result, err := newTestCollaborative(config.DedupMax, 5).Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"A", "B", "E"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, []string{"D"}, titles(result.Items))
}

func TestCollaborative_InsufficientData(t *testing.T) {
	collaborative := newTestCollaborative(config.DedupMax, 5)
	result, err := collaborative.Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"C", "X", "Y"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, StatusInsufficientData, result.Status)
	assert.Empty(t, result.Items)

	// neighbors exist but like nothing else
	result, err = collaborative.Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"F", "X", "Y"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, StatusInsufficientData, result.Status)
}

func TestCollaborative_UnknownSeeds(t *testing.T) {
	result, err := newTestCollaborative(config.DedupMax, 5).Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"X", "Y", "Z"}, 5)
	assert.NoError(t, err)
	assert.Equal(t, StatusEmpty, result.Status)
	assert.Empty(t, result.Items)
}

func TestCollaborative_DuplicateSeedTitle(t *testing.T) {
	catalog := dataset.NewCatalog([]data.Item{
		{ItemId: 1, Title: "A"},
		{ItemId: 2, Title: "A"},
		{ItemId: 3, Title: "C"},
	})
	ratings := dataset.NewRatings(catalog, []data.Rating{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 1, ItemId: 3, Rating: 4},
		{UserId: 2, ItemId: 2, Rating: 5},
	})
	collaborative := newTestCollaborative(config.DedupMax, 5)
	seedIds, err := collaborative.resolveSeeds(ratings, []string{"A", "X", "Y"})
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seedIds)
	assert.Equal(t, []int{1, 2}, collaborative.Neighbors(ratings, seedIds))
}

func TestCollaborative_Errors(t *testing.T) {
	collaborative := newTestCollaborative(config.DedupMax, 5)
	_, err := collaborative.Recommend(context.Background(), newTestRatings(), nil, []string{"A", "B", "C"}, 5)
	assert.True(t, errors.Is(err, errors.NotAssigned))
	_, err = collaborative.Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"A", "B", "C"}, -1)
	assert.True(t, errors.Is(err, errors.NotValid))

	cfg := config.GetDefaultConfig()
	cfg.Recommend.MissingSeed = config.MissingSeedStrict
	_, err = NewCollaborative(cfg.Recommend).Recommend(context.Background(), newTestRatings(), newTestModel(), []string{"A", "B", "X"}, 5)
	assert.True(t, errors.Is(err, errors.NotFound))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = collaborative.Recommend(ctx, newTestRatings(), newTestModel(), []string{"A", "B", "C"}, 5)
	assert.ErrorIs(t, err, context.Canceled)
}
