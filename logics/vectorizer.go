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
	"context"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/moviematch/common/floats"
	"github.com/gorse-io/moviematch/common/parallel"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize splits text into lower-cased words of at least two characters.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

type VectorizerOptions struct {
	MaxFeatures int
	StopWords   bool
}

// SparseVector stores non-zero weights ordered by term index.
type SparseVector struct {
	Indices []int32
	Values  []float32
}

// Norm returns the L2 norm.
func (v SparseVector) Norm() float32 {
	return floats.Norm(v.Values)
}

// VectorSpace is the TF-IDF representation of a catalog. Vectors are L2-normalized, so
// the cosine similarity of two items is the dot product of their vectors.
type VectorSpace struct {
	Vocabulary []string
	IDF        []float32
	Vectors    []SparseVector

	mu   sync.Mutex
	rows map[int][]float32
}

// Fit builds the vector space of documents. The vocabulary keeps the MaxFeatures terms with the
// highest frequency over all documents. Each weight is the term count multiplied by the
// smoothed inverse document frequency ln((1+n)/(1+df))+1.
func Fit(documents []string, options VectorizerOptions) (*VectorSpace, error) {
	if options.MaxFeatures <= 0 {
		return nil, errors.NotValidf("max features %d", options.MaxFeatures)
	}
	var stopWords mapset.Set[string]
	if options.StopWords {
		stopWords = EnglishStopWords
	}

	// count terms
	counts := make([]map[string]int, len(documents))
	frequency := make(map[string]int)
	for i, document := range documents {
		counts[i] = make(map[string]int)
		for _, token := range Tokenize(document) {
			if stopWords != nil && stopWords.Contains(token) {
				continue
			}
			counts[i][token]++
			frequency[token]++
		}
	}

	// limit vocabulary
	terms := make([]string, 0, len(frequency))
	for term := range frequency {
		terms = append(terms, term)
	}
	slices.SortFunc(terms, func(a, b string) int {
		return cmp.Or(cmp.Compare(frequency[b], frequency[a]), strings.Compare(a, b))
	})
	if len(terms) > options.MaxFeatures {
		terms = terms[:options.MaxFeatures]
	}
	slices.Sort(terms)
	index := make(map[string]int32, len(terms))
	for i, term := range terms {
		index[term] = int32(i)
	}

	// inverse document frequency
	df := make([]int, len(terms))
	for _, count := range counts {
		for term := range count {
			if i, ok := index[term]; ok {
				df[i]++
			}
		}
	}
	n := float32(len(documents))
	idf := make([]float32, len(terms))
	for i := range idf {
		idf[i] = math32.Log((1+n)/(1+float32(df[i]))) + 1
	}

	// weight and normalize
	vectors := make([]SparseVector, len(documents))
	for i, count := range counts {
		var vector SparseVector
		for term := range count {
			if j, ok := index[term]; ok {
				vector.Indices = append(vector.Indices, j)
			}
		}
		slices.Sort(vector.Indices)
		vector.Values = make([]float32, len(vector.Indices))
		for k, j := range vector.Indices {
			vector.Values[k] = float32(count[terms[j]]) * idf[j]
		}
		if norm := vector.Norm(); norm > 0 {
			floats.MulConst(vector.Values, 1/norm)
		}
		vectors[i] = vector
	}
	return &VectorSpace{
		Vocabulary: terms,
		IDF:        idf,
		Vectors:    vectors,
		rows:       make(map[int][]float32),
	}, nil
}

func (s *VectorSpace) Count() int {
	return len(s.Vectors)
}

// Similarity returns the cosine similarity between an item and every item. Rows are computed
// once and kept with the vector space.
func (s *VectorSpace) Similarity(ctx context.Context, row, numJobs int) ([]float32, error) {
	if row < 0 || row >= len(s.Vectors) {
		return nil, errors.NotValidf("row %d of %d", row, len(s.Vectors))
	}
	s.mu.Lock()
	cached, exist := s.rows[row]
	s.mu.Unlock()
	if exist {
		return cached, nil
	}

	dense := make([]float32, len(s.Vocabulary))
	for k, j := range s.Vectors[row].Indices {
		if int(j) >= len(dense) {
			return nil, errors.NotValidf("term %d in vocabulary of %d", j, len(dense))
		}
		dense[j] = s.Vectors[row].Values[k]
	}
	scores := make([]float32, len(s.Vectors))
	chunks := parallel.Split(lo.Range(len(s.Vectors)), max(numJobs, 1))
	if err := parallel.Parallel(ctx, len(chunks), numJobs, func(_, jobId int) error {
		for _, i := range chunks[jobId] {
			vector := s.Vectors[i]
			var score float32
			for k, j := range vector.Indices {
				if int(j) >= len(dense) {
					return errors.NotValidf("term %d in vocabulary of %d", j, len(dense))
				}
				score += vector.Values[k] * dense[j]
			}
			scores[i] = score
		}
		return nil
	}); err != nil {
		return nil, errors.Trace(err)
	}

	s.mu.Lock()
	s.rows[row] = scores
	s.mu.Unlock()
	return scores, nil
}

// MeanSimilarity averages the similarity rows of items.
func (s *VectorSpace) MeanSimilarity(ctx context.Context, rows []int, numJobs int) ([]float32, error) {
	similarities := make([][]float32, len(rows))
	for i, row := range rows {
		var err error
		if similarities[i], err = s.Similarity(ctx, row, numJobs); err != nil {
			return nil, errors.Trace(err)
		}
	}
	mean := make([]float32, len(s.Vectors))
	floats.Mean(similarities, mean)
	return mean, nil
}
