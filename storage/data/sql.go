// Copyright 2020 gorse Project Authors
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

package data

import (
	"context"
	"database/sql"

	"github.com/gorse-io/moviematch/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLItem and SQLRating are mapped to the items and ratings tables by storage.NewGORMConfig.
type SQLItem Item

type SQLRating Rating

// SQLDatabase use MySQL, Postgres or SQLite as data storage.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init creates the items and ratings tables if they do not exist.
func (d *SQLDatabase) Init() error {
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := db.AutoMigrate(&SQLItem{}, &SQLRating{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return errors.Trace(d.client.Ping())
}

func (d *SQLDatabase) Close() error {
	return errors.Trace(d.client.Close())
}

// Purge deletes every item and rating.
func (d *SQLDatabase) Purge() error {
	for _, tableName := range []string{d.RatingsTable(), d.ItemsTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + tableName).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertItems inserts items and overwrites existing items with the same id.
func (d *SQLDatabase) BatchInsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	rows := lo.Map(items, func(item Item, _ int) SQLItem {
		if item.Genres == nil {
			item.Genres = []string{}
		}
		return SQLItem(item)
	})
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	return errors.Trace(err)
}

// BatchInsertRatings inserts ratings and overwrites existing ratings of the same user and item.
func (d *SQLDatabase) BatchInsertRatings(ctx context.Context, ratings []Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	for _, rating := range ratings {
		if err := ValidateRating(rating.Rating); err != nil {
			return errors.Annotatef(err, "user %d, item %d", rating.UserId, rating.ItemId)
		}
	}
	rows := lo.Map(ratings, func(rating Rating, _ int) SQLRating {
		return SQLRating(rating)
	})
	err := d.gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetItems(ctx context.Context) ([]Item, error) {
	var rows []SQLItem
	if err := d.gormDB.WithContext(ctx).Order("item_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLItem, _ int) Item {
		return Item(row)
	}), nil
}

func (d *SQLDatabase) GetRatings(ctx context.Context) ([]Rating, error) {
	var rows []SQLRating
	if err := d.gormDB.WithContext(ctx).Order("user_id, item_id").Find(&rows).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(rows, func(row SQLRating, _ int) Rating {
		return Rating(row)
	}), nil
}
