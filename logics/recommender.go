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
	"sync"

	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/model/cf"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
)

// NumSeeds is the number of movies a recommendation starts from.
const NumSeeds = 3

// Recommender serves both engines over one snapshot of catalog, ratings and model. A reload
// replaces the snapshot while no recommendation is running.
type Recommender struct {
	mu            sync.RWMutex
	catalog       *dataset.Catalog
	ratings       *dataset.Ratings
	model         cf.FactorModel
	content       *ContentBased
	collaborative *Collaborative
}

// NewRecommender creates a recommender. The model may be nil, then collaborative filtering
// fails until a model is loaded.
func NewRecommender(cfg *config.Config, catalog *dataset.Catalog, ratings *dataset.Ratings, model cf.FactorModel) *Recommender {
	return &Recommender{
		catalog:       catalog,
		ratings:       ratings,
		model:         model,
		content:       NewContentBased(cfg.Recommend),
		collaborative: NewCollaborative(cfg.Recommend),
	}
}

// Reload swaps the catalog, ratings and model.
func (r *Recommender) Reload(catalog *dataset.Catalog, ratings *dataset.Ratings, model cf.FactorModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalog = catalog
	r.ratings = ratings
	r.model = model
}

func validateRequest(seeds []string, topN int) error {
	if len(seeds) != NumSeeds {
		return errors.NotValidf("%d seed movies, expect %d", len(seeds), NumSeeds)
	}
	if topN <= 0 {
		return errors.NotValidf("top_n %d", topN)
	}
	return nil
}

// RecommendContent recommends movies with similar overviews to seeds.
func (r *Recommender) RecommendContent(ctx context.Context, seeds []string, topN int) (*Result, error) {
	if err := validateRequest(seeds, topN); err != nil {
		return nil, errors.Trace(err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, err := r.content.Recommend(ctx, r.catalog, seeds, topN)
	return result, errors.Trace(err)
}

// RecommendCollaborative recommends movies liked by users who liked seeds.
func (r *Recommender) RecommendCollaborative(ctx context.Context, seeds []string, topN int) (*Result, error) {
	if err := validateRequest(seeds, topN); err != nil {
		return nil, errors.Trace(err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.model == nil {
		return nil, errors.NotAssignedf("factor model")
	}
	result, err := r.collaborative.Recommend(ctx, r.ratings, r.model, seeds, topN)
	return result, errors.Trace(err)
}

// Items returns at most n movies starting at offset, in catalog order.
func (r *Recommender) Items(offset, n int) []data.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.catalog.GetItems()
	if offset >= len(items) || offset < 0 || n <= 0 {
		return []data.Item{}
	}
	return slices.Clone(items[offset:min(offset+n, len(items))])
}

func (r *Recommender) Catalog() *dataset.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.catalog
}
