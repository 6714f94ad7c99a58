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
	"cmp"
	"slices"

	"github.com/gorse-io/moviematch/storage/data"
	"github.com/samber/lo"
)

// Ratings is an immutable sparse user-item rating matrix indexed by user and by item.
// Titles are resolved through the catalog, so ratings of items outside the catalog are dropped.
type Ratings struct {
	catalog     *Catalog
	ratings     []data.Rating
	users       []int
	userRatings map[int][]data.Rating
	itemRatings map[int][]data.Rating
	dropped     int
}

// NewRatings indexes ratings. When a user rated an item more than once, the last rating wins.
func NewRatings(catalog *Catalog, ratings []data.Rating) *Ratings {
	r := &Ratings{
		catalog:     catalog,
		userRatings: make(map[int][]data.Rating),
		itemRatings: make(map[int][]data.Rating),
	}
	known := lo.Filter(ratings, func(rating data.Rating, _ int) bool {
		_, ok := catalog.Row(rating.ItemId)
		return ok
	})
	r.dropped = len(ratings) - len(known)
	slices.SortStableFunc(known, func(a, b data.Rating) int {
		return cmp.Or(cmp.Compare(a.UserId, b.UserId), cmp.Compare(a.ItemId, b.ItemId))
	})
	r.ratings = make([]data.Rating, 0, len(known))
	for i, rating := range known {
		if i+1 < len(known) && known[i+1].UserId == rating.UserId && known[i+1].ItemId == rating.ItemId {
			continue
		}
		r.ratings = append(r.ratings, rating)
	}
	for _, rating := range r.ratings {
		if _, exist := r.userRatings[rating.UserId]; !exist {
			r.users = append(r.users, rating.UserId)
		}
		r.userRatings[rating.UserId] = append(r.userRatings[rating.UserId], rating)
		r.itemRatings[rating.ItemId] = append(r.itemRatings[rating.ItemId], rating)
	}
	return r
}

func (r *Ratings) Catalog() *Catalog {
	return r.catalog
}

func (r *Ratings) Count() int {
	return len(r.ratings)
}

// CountDropped returns the number of ratings whose item is not in the catalog.
func (r *Ratings) CountDropped() int {
	return r.dropped
}

// GetRatings returns all ratings ordered by user id and item id.
func (r *Ratings) GetRatings() []data.Rating {
	return r.ratings
}

// Users returns ids of users with at least one rating, in ascending order.
func (r *Ratings) Users() []int {
	return r.users
}

// UserRatings returns ratings of a user ordered by item id.
func (r *Ratings) UserRatings(userId int) []data.Rating {
	return r.userRatings[userId]
}

// ItemRatings returns ratings of an item ordered by user id.
func (r *Ratings) ItemRatings(itemId int) []data.Rating {
	return r.itemRatings[itemId]
}

// ItemIds returns ids of all items with the title.
func (r *Ratings) ItemIds(title string) []int {
	return lo.Map(r.catalog.Rows(title), func(row int, _ int) int {
		return r.catalog.GetItem(row).ItemId
	})
}

func (r *Ratings) Title(itemId int) (string, bool) {
	return r.catalog.Title(itemId)
}
