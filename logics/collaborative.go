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
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/model/cf"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Collaborative recommends movies liked by users who liked the seed movies. Candidates are
// ranked by the ratings a factor model predicts for those users.
type Collaborative struct {
	highRating   float32
	perUserLimit int
	dedup        string
	missingSeed  string
}

func NewCollaborative(cfg config.RecommendConfig) *Collaborative {
	return &Collaborative{
		highRating:   cfg.Collaborative.HighRating,
		perUserLimit: cfg.Collaborative.PerUserLimit,
		dedup:        cfg.Collaborative.Dedup,
		missingSeed:  cfg.MissingSeed,
	}
}

// Neighbors returns users who rated any of the items at least the high rating, in ascending order.
func (c *Collaborative) Neighbors(ratings *dataset.Ratings, itemIds []int) []int {
	neighbors := mapset.NewThreadUnsafeSet[int]()
	for _, itemId := range itemIds {
		for _, rating := range ratings.ItemRatings(itemId) {
			if rating.Rating >= c.highRating {
				neighbors.Add(rating.UserId)
			}
		}
	}
	users := neighbors.ToSlice()
	slices.Sort(users)
	return users
}

// resolveSeeds maps titles to distinct item ids in ascending order. Unknown titles are skipped
// with a warning or rejected, depending on the missing seed policy.
func (c *Collaborative) resolveSeeds(ratings *dataset.Ratings, titles []string) ([]int, error) {
	seedIds := mapset.NewThreadUnsafeSet[int]()
	for _, title := range titles {
		itemIds := ratings.ItemIds(title)
		if len(itemIds) == 0 {
			if c.missingSeed == config.MissingSeedStrict {
				return nil, errors.NotFoundf("movie %q", title)
			}
			log.Logger().Warn("skip unknown seed movie", zap.String("title", title))
			continue
		}
		seedIds.Append(itemIds...)
	}
	itemIds := seedIds.ToSlice()
	slices.Sort(itemIds)
	return itemIds, nil
}

// Recommend movies for seeds. Each neighbor contributes at most perUserLimit of the movies it
// rated highly, ranked by predicted rating. Without any known seed the result is tagged
// StatusEmpty, otherwise an empty result is tagged StatusInsufficientData.
func (c *Collaborative) Recommend(ctx context.Context, ratings *dataset.Ratings, model cf.FactorModel, seeds []string, topN int) (*Result, error) {
	if topN <= 0 {
		return nil, errors.NotValidf("top_n %d", topN)
	}
	if model == nil {
		return nil, errors.NotAssignedf("factor model")
	}
	catalog := ratings.Catalog()
	seedIds, err := c.resolveSeeds(ratings, seeds)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(seedIds) == 0 {
		return NewResult(nil, StatusEmpty), nil
	}
	seedSet := mapset.NewThreadUnsafeSet(seedIds...)

	neighbors := c.Neighbors(ratings, seedIds)
	var pool []Recommendation
	for _, userId := range neighbors {
		if err = ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		var predictions []Recommendation
		for _, rating := range ratings.UserRatings(userId) {
			if rating.Rating < c.highRating || seedSet.Contains(rating.ItemId) {
				continue
			}
			row, _ := catalog.Row(rating.ItemId)
			item := catalog.GetItem(row)
			predictions = append(predictions, Recommendation{
				ItemId: item.ItemId,
				Title:  item.Title,
				Genres: item.Genres,
				Score:  model.Predict(userId, item.ItemId),
			})
		}
		SortScores(predictions)
		pool = append(pool, Truncate(predictions, c.perUserLimit)...)
	}
	SortScores(pool)
	if pool, err = DeduplicateTitles(pool, c.dedup); err != nil {
		return nil, errors.Trace(err)
	}
	items := Truncate(ExcludeSeeds(pool, seedSet), topN)
	log.Logger().Debug("collaborative filtering",
		zap.Strings("seeds", seeds),
		zap.Ints("seed_ids", seedIds),
		zap.Int("n_neighbors", len(neighbors)),
		zap.Int("n_candidates", len(pool)))
	return NewResult(items, StatusInsufficientData), nil
}
