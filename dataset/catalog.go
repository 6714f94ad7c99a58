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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/gorse-io/moviematch/storage/data"
)

// Catalog is an immutable snapshot of items. Rows follow the order items were given in.
type Catalog struct {
	items   []data.Item
	rows    map[int]int
	titles  map[string][]int
	version uint64
}

// NewCatalog builds a catalog. If several items share an id, the first one wins.
func NewCatalog(items []data.Item) *Catalog {
	c := &Catalog{
		items:  make([]data.Item, 0, len(items)),
		rows:   make(map[int]int, len(items)),
		titles: make(map[string][]int, len(items)),
	}
	digest := xxhash.New()
	var buf [8]byte
	for _, item := range items {
		if _, exist := c.rows[item.ItemId]; exist {
			continue
		}
		row := len(c.items)
		c.items = append(c.items, item)
		c.rows[item.ItemId] = row
		c.titles[item.Title] = append(c.titles[item.Title], row)

		binary.LittleEndian.PutUint64(buf[:], uint64(item.ItemId))
		_, _ = digest.Write(buf[:])
		_, _ = digest.WriteString(item.Title)
		_, _ = digest.Write([]byte{0})
		_, _ = digest.WriteString(item.Overview)
		_, _ = digest.Write([]byte{0})
	}
	c.version = digest.Sum64()
	return c
}

// Version identifies the content of the catalog. Catalogs with the same ids, titles and
// overviews in the same order share a version.
func (c *Catalog) Version() uint64 {
	return c.version
}

func (c *Catalog) Count() int {
	return len(c.items)
}

func (c *Catalog) GetItems() []data.Item {
	return c.items
}

func (c *Catalog) GetItem(row int) data.Item {
	return c.items[row]
}

// Row returns the row of an item id.
func (c *Catalog) Row(itemId int) (int, bool) {
	row, ok := c.rows[itemId]
	return row, ok
}

// Rows returns the rows whose title matches exactly.
func (c *Catalog) Rows(title string) []int {
	return c.titles[title]
}

func (c *Catalog) Title(itemId int) (string, bool) {
	row, ok := c.rows[itemId]
	if !ok {
		return "", false
	}
	return c.items[row].Title, true
}

// Overviews returns the overview of each row.
func (c *Catalog) Overviews() []string {
	overviews := make([]string, len(c.items))
	for i, item := range c.items {
		overviews[i] = item.Overview
	}
	return overviews
}
