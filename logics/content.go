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
	"fmt"
	"time"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ContentBased recommends movies whose overviews are similar to the overviews of seed movies.
type ContentBased struct {
	options     VectorizerOptions
	numJobs     int
	missingSeed string
	cache       *ttlcache.Cache[string, *VectorSpace]
}

func NewContentBased(cfg config.RecommendConfig) *ContentBased {
	return &ContentBased{
		options: VectorizerOptions{
			MaxFeatures: cfg.Content.MaxFeatures,
			StopWords:   cfg.Content.StopWords,
		},
		numJobs:     cfg.NumJobs,
		missingSeed: cfg.MissingSeed,
		cache: ttlcache.New[string, *VectorSpace](
			ttlcache.WithTTL[string, *VectorSpace](cfg.Content.CacheTTL),
			ttlcache.WithCapacity[string, *VectorSpace](max(cfg.Content.CacheCapacity, 1)),
		),
	}
}

func (c *ContentBased) cacheKey(catalog *dataset.Catalog) string {
	return fmt.Sprintf("%016x/%d/%v", catalog.Version(), c.options.MaxFeatures, c.options.StopWords)
}

// VectorSpace returns the vector space of a catalog. It is built on the first request for a
// catalog version and served from cache afterwards.
func (c *ContentBased) VectorSpace(catalog *dataset.Catalog) (*VectorSpace, error) {
	key := c.cacheKey(catalog)
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	start := time.Now()
	space, err := Fit(catalog.Overviews(), c.options)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if space.Count() != catalog.Count() {
		return nil, errors.NotValidf("vector space of %d items for catalog of %d items", space.Count(), catalog.Count())
	}
	c.cache.Set(key, space, ttlcache.DefaultTTL)
	log.Logger().Debug("build vector space",
		zap.String("key", key),
		zap.Int("n_items", space.Count()),
		zap.Int("n_terms", len(space.Vocabulary)),
		zap.Duration("build_time", time.Since(start)))
	return space, nil
}

// Recommend movies similar to seeds. The similarity rows of seeds are averaged into one score
// per movie, then the best movies other than seeds are returned.
func (c *ContentBased) Recommend(ctx context.Context, catalog *dataset.Catalog, seeds []string, topN int) (*Result, error) {
	if topN <= 0 {
		return nil, errors.NotValidf("top_n %d", topN)
	}
	seedRows, err := resolveRows(catalog, seeds, c.missingSeed)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if catalog.Count() == 0 || len(seedRows) == 0 {
		return NewResult(nil, StatusEmpty), nil
	}
	space, err := c.VectorSpace(catalog)
	if err != nil {
		return nil, errors.Trace(err)
	}
	scores, err := space.MeanSimilarity(ctx, seedRows, c.numJobs)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// over-fetch so that enough candidates survive seed exclusion
	topN = min(topN, catalog.Count())
	n := max(2*topN, topN+len(seedRows))
	candidates := make([]Recommendation, len(scores))
	for row, score := range scores {
		item := catalog.GetItem(row)
		candidates[row] = Recommendation{ItemId: item.ItemId, Title: item.Title, Genres: item.Genres, Score: score}
	}
	SortScores(candidates)
	candidates = Truncate(candidates, n)

	seedIds := mapset.NewThreadUnsafeSet[int]()
	for _, row := range seedRows {
		seedIds.Add(catalog.GetItem(row).ItemId)
	}
	candidates, err = DeduplicateTitles(ExcludeSeeds(candidates, seedIds), config.DedupMax)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewResult(Truncate(candidates, topN), StatusEmpty), nil
}

// resolveRows maps titles to distinct catalog rows in the order of titles. Unknown titles are
// skipped with a warning or rejected, depending on policy.
func resolveRows(catalog *dataset.Catalog, titles []string, policy string) ([]int, error) {
	var rows []int
	visited := bitset.New(uint(catalog.Count()))
	for _, title := range titles {
		matched := catalog.Rows(title)
		if len(matched) == 0 {
			if policy == config.MissingSeedStrict {
				return nil, errors.NotFoundf("movie %q", title)
			}
			log.Logger().Warn("skip unknown seed movie", zap.String("title", title))
			continue
		}
		for _, row := range matched {
			if !visited.Test(uint(row)) {
				visited.Set(uint(row))
				rows = append(rows, row)
			}
		}
	}
	return rows, nil
}
