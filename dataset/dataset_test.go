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

package dataset

import (
	"testing"

	"github.com/gorse-io/moviematch/storage/data"
	"github.com/stretchr/testify/assert"
)

func newTestCatalog() *Catalog {
	return NewCatalog([]data.Item{
		{ItemId: 10, Title: "Toy Story", Overview: "toys"},
		{ItemId: 20, Title: "Superman", Overview: "hero"},
		{ItemId: 30, Title: "Terminator", Overview: "cyborg"},
		{ItemId: 40, Title: "Superman", Overview: "remake"},
		{ItemId: 10, Title: "Duplicate", Overview: "ignored"},
	})
}

func TestCatalog(t *testing.T) {
	catalog := newTestCatalog()
	assert.Equal(t, 4, catalog.Count())
	assert.Equal(t, "Toy Story", catalog.GetItem(0).Title)
	assert.Equal(t, []int{1, 3}, catalog.Rows("Superman"))
	assert.Empty(t, catalog.Rows("superman"))
	assert.Empty(t, catalog.Rows("Alien"))

	row, ok := catalog.Row(30)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	_, ok = catalog.Row(50)
	assert.False(t, ok)

	title, ok := catalog.Title(40)
	assert.True(t, ok)
	assert.Equal(t, "Superman", title)
	assert.Equal(t, []string{"toys", "hero", "cyborg", "remake"}, catalog.Overviews())
}

func TestCatalogVersion(t *testing.T) {
	assert.Equal(t, newTestCatalog().Version(), newTestCatalog().Version())

	changed := NewCatalog([]data.Item{
		{ItemId: 10, Title: "Toy Story", Overview: "toys"},
		{ItemId: 20, Title: "Superman", Overview: "hero!"},
		{ItemId: 30, Title: "Terminator", Overview: "cyborg"},
		{ItemId: 40, Title: "Superman", Overview: "remake"},
	})
	assert.NotEqual(t, newTestCatalog().Version(), changed.Version())

	// field boundaries are part of the version
	a := NewCatalog([]data.Item{{ItemId: 1, Title: "ab", Overview: "c"}})
	b := NewCatalog([]data.Item{{ItemId: 1, Title: "a", Overview: "bc"}})
	assert.NotEqual(t, a.Version(), b.Version())
}

func TestRatings(t *testing.T) {
	ratings := NewRatings(newTestCatalog(), []data.Rating{
		{UserId: 2, ItemId: 20, Rating: 4},
		{UserId: 1, ItemId: 30, Rating: 5},
		{UserId: 1, ItemId: 10, Rating: 3},
		{UserId: 1, ItemId: 10, Rating: 4.5},
		{UserId: 3, ItemId: 99, Rating: 5},
		{UserId: 2, ItemId: 40, Rating: 2},
	})
	assert.Equal(t, 4, ratings.Count())
	assert.Equal(t, 1, ratings.CountDropped())
	assert.Equal(t, []int{1, 2}, ratings.Users())
	assert.Equal(t, []data.Rating{
		{UserId: 1, ItemId: 10, Rating: 4.5},
		{UserId: 1, ItemId: 30, Rating: 5},
		{UserId: 2, ItemId: 20, Rating: 4},
		{UserId: 2, ItemId: 40, Rating: 2},
	}, ratings.GetRatings())
	assert.Equal(t, []data.Rating{
		{UserId: 2, ItemId: 20, Rating: 4},
		{UserId: 2, ItemId: 40, Rating: 2},
	}, ratings.UserRatings(2))
	assert.Equal(t, []data.Rating{{UserId: 1, ItemId: 10, Rating: 4.5}}, ratings.ItemRatings(10))
	assert.Empty(t, ratings.UserRatings(3))
	assert.Equal(t, []int{20, 40}, ratings.ItemIds("Superman"))
	assert.Empty(t, ratings.ItemIds("Alien"))

	title, ok := ratings.Title(30)
	assert.True(t, ok)
	assert.Equal(t, "Terminator", title)
}
