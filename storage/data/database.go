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
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/gorse-io/moviematch/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	MinRating = 0.5
	MaxRating = 5.0
)

// Item stores meta data about a movie.
type Item struct {
	ItemId   int      `gorm:"column:item_id;primaryKey;autoIncrement:false"`
	Title    string   `gorm:"column:title;index"`
	Overview string   `gorm:"column:overview"`
	Genres   []string `gorm:"column:genres;serializer:json"`
}

// Rating is the score given by a user to a movie.
type Rating struct {
	UserId int     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	ItemId int     `gorm:"column:item_id;primaryKey;autoIncrement:false;index"`
	Rating float32 `gorm:"column:rating"`
}

// ValidateRating checks that a rating lies on the half-point scale from MinRating to MaxRating.
func ValidateRating(rating float32) error {
	if rating < MinRating || rating > MaxRating {
		return errors.NotValidf("rating %v out of [%v, %v]", rating, MinRating, MaxRating)
	}
	if doubled := rating * 2; doubled != float32(int(doubled)) {
		return errors.NotValidf("rating %v is not a multiple of 0.5", rating)
	}
	return nil
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertItems(ctx context.Context, items []Item) error
	BatchInsertRatings(ctx context.Context, ratings []Rating) error
	// GetItems returns all items ordered by item id.
	GetItems(ctx context.Context) ([]Item, error)
	// GetRatings returns all ratings ordered by user id and item id.
	GetRatings(ctx context.Context) ([]Rating, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	var err error
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode": "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(attribute.String("db.system", "mysql")),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(attribute.String("db.system", "sqlite")),
		); err != nil {
			return nil, errors.Trace(err)
		}
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(tablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
