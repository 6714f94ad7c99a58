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
	"cmp"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/moviematch/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

type Status string

const (
	StatusOK               Status = "ok"
	StatusEmpty            Status = "empty"
	StatusInsufficientData Status = "insufficient_data"
)

type Recommendation struct {
	ItemId int
	Title  string
	Genres []string
	Score  float32
}

// Result is a ranked list of recommendations. Items is empty unless Status is StatusOK.
type Result struct {
	Status Status
	Items  []Recommendation
}

// NewResult tags recommendations with StatusOK, or with emptyStatus if there is none.
func NewResult(items []Recommendation, emptyStatus Status) *Result {
	if len(items) == 0 {
		return &Result{Status: emptyStatus, Items: []Recommendation{}}
	}
	return &Result{Status: StatusOK, Items: items}
}

// SortScores sorts recommendations by score in descending order. Equal scores keep their order.
func SortScores(items []Recommendation) {
	slices.SortStableFunc(items, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// ExcludeSeeds removes recommendations of seed items.
func ExcludeSeeds(items []Recommendation, seeds mapset.Set[int]) []Recommendation {
	return lo.Filter(items, func(item Recommendation, _ int) bool {
		return !seeds.Contains(item.ItemId)
	})
}

// Truncate keeps at most the first n recommendations.
func Truncate(items []Recommendation, n int) []Recommendation {
	if len(items) > n {
		return items[:max(n, 0)]
	}
	return items
}

// DeduplicateTitles merges recommendations sharing a title. The policy max keeps the highest
// score, sum adds scores up and none keeps duplicates. The result is sorted by score.
func DeduplicateTitles(items []Recommendation, policy string) ([]Recommendation, error) {
	switch policy {
	case config.DedupNone:
		return items, nil
	case config.DedupMax, config.DedupSum:
	default:
		return nil, errors.NotValidf("dedup policy %q", policy)
	}
	merged := make([]Recommendation, 0, len(items))
	positions := make(map[string]int, len(items))
	for _, item := range items {
		pos, exist := positions[item.Title]
		if !exist {
			positions[item.Title] = len(merged)
			merged = append(merged, item)
			continue
		}
		if policy == config.DedupSum {
			merged[pos].Score += item.Score
		} else if item.Score > merged[pos].Score {
			merged[pos] = item
		}
	}
	SortScores(merged)
	return merged, nil
}
