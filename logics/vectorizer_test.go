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

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"space", "war", "robots", "x2", "été"}, Tokenize("Space-war, ROBOTS! a I x2 Été"))
	assert.Empty(t, Tokenize(""))
}

func TestFit(t *testing.T) {
	space, err := Fit([]string{
		"space war robots",
		"space opera robots",
		"romantic comedy",
		"the and of",
	}, VectorizerOptions{MaxFeatures: 2000, StopWords: true})
	assert.NoError(t, err)
	assert.Equal(t, 4, space.Count())
	assert.Equal(t, []string{"comedy", "opera", "robots", "romantic", "space", "war"}, space.Vocabulary)
	// terms in one document weigh more than terms in two
	assert.Greater(t, space.IDF[5], space.IDF[2])
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1, space.Vectors[i].Norm(), 1e-6)
	}
	// stop words only
	assert.Zero(t, space.Vectors[3].Norm())

	similarity, err := space.Similarity(context.Background(), 0, 1)
	assert.NoError(t, err)
	assert.InDelta(t, 1, similarity[0], 1e-6)
	assert.Greater(t, similarity[1], similarity[2])
	assert.Zero(t, similarity[2])
	assert.Zero(t, similarity[3])
}

func TestFitMaxFeatures(t *testing.T) {
	space, err := Fit([]string{
		"space war robots",
		"space opera robots",
		"romantic comedy",
	}, VectorizerOptions{MaxFeatures: 2})
	assert.NoError(t, err)
	assert.Equal(t, []string{"robots", "space"}, space.Vocabulary)
	assert.Empty(t, space.Vectors[2].Indices)

	_, err = Fit(nil, VectorizerOptions{})
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestFitWithoutStopWords(t *testing.T) {
	space, err := Fit([]string{"the robots", "the comedy"}, VectorizerOptions{MaxFeatures: 10})
	assert.NoError(t, err)
	assert.Contains(t, space.Vocabulary, "the")
}

func TestSimilarityRows(t *testing.T) {
	space, err := Fit([]string{
		"space war robots",
		"space opera robots",
		"romantic comedy",
		"space comedy",
	}, VectorizerOptions{MaxFeatures: 2000, StopWords: true})
	assert.NoError(t, err)
	serial := make([][]float32, len(space.Vectors))
	for i := range serial {
		serial[i], err = space.Similarity(context.Background(), i, 1)
		assert.NoError(t, err)
	}

	// parallel computation gives the same rows
	space.rows = make(map[int][]float32)
	for i := range serial {
		parallel, err := space.Similarity(context.Background(), i, 3)
		assert.NoError(t, err)
		assert.Equal(t, serial[i], parallel)
	}

	for i := range serial {
		for j := range serial {
			assert.InDelta(t, serial[i][j], serial[j][i], 1e-6)
		}
	}

	mean, err := space.MeanSimilarity(context.Background(), []int{0, 2}, 1)
	assert.NoError(t, err)
	for j := range mean {
		assert.InDelta(t, (serial[0][j]+serial[2][j])/2, mean[j], 1e-6)
	}

	_, err = space.Similarity(context.Background(), 4, 1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestSimilarityCanceled(t *testing.T) {
	space, err := Fit([]string{"space war", "space opera"}, VectorizerOptions{MaxFeatures: 10})
	assert.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = space.Similarity(ctx, 0, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
