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
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SQLiteTestSuite struct {
	suite.Suite
	Database
}

func (suite *SQLiteTestSuite) SetupTest() {
	var err error
	path := filepath.Join(suite.T().TempDir(), "sqlite.db")
	suite.Database, err = Open("sqlite://"+path, "mm_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func (suite *SQLiteTestSuite) TearDownTest() {
	suite.NoError(suite.Database.Close())
}

func (suite *SQLiteTestSuite) TestItems() {
	ctx := context.Background()
	items := []Item{
		{ItemId: 3, Title: "Terminator", Overview: "A cyborg assassin.", Genres: []string{"Action", "Sci-Fi"}},
		{ItemId: 1, Title: "Toy Story", Overview: "Toys come to life.", Genres: []string{"Animation"}},
		{ItemId: 2, Title: "Superman"},
	}
	suite.NoError(suite.BatchInsertItems(ctx, items))
	stored, err := suite.GetItems(ctx)
	suite.NoError(err)
	suite.Equal([]Item{
		{ItemId: 1, Title: "Toy Story", Overview: "Toys come to life.", Genres: []string{"Animation"}},
		{ItemId: 2, Title: "Superman", Genres: []string{}},
		{ItemId: 3, Title: "Terminator", Overview: "A cyborg assassin.", Genres: []string{"Action", "Sci-Fi"}},
	}, stored)

	// overwrite existing item
	suite.NoError(suite.BatchInsertItems(ctx, []Item{{ItemId: 2, Title: "Superman II", Genres: []string{"Action"}}}))
	stored, err = suite.GetItems(ctx)
	suite.NoError(err)
	suite.Len(stored, 3)
	suite.Equal(Item{ItemId: 2, Title: "Superman II", Genres: []string{"Action"}}, stored[1])

	// insert nothing
	suite.NoError(suite.BatchInsertItems(ctx, nil))
}

func (suite *SQLiteTestSuite) TestRatings() {
	ctx := context.Background()
	ratings := []Rating{
		{UserId: 2, ItemId: 1, Rating: 4},
		{UserId: 1, ItemId: 3, Rating: 3.5},
		{UserId: 1, ItemId: 1, Rating: 5},
	}
	suite.NoError(suite.BatchInsertRatings(ctx, ratings))
	stored, err := suite.GetRatings(ctx)
	suite.NoError(err)
	suite.Equal([]Rating{
		{UserId: 1, ItemId: 1, Rating: 5},
		{UserId: 1, ItemId: 3, Rating: 3.5},
		{UserId: 2, ItemId: 1, Rating: 4},
	}, stored)

	// overwrite existing rating
	suite.NoError(suite.BatchInsertRatings(ctx, []Rating{{UserId: 1, ItemId: 3, Rating: 1}}))
	stored, err = suite.GetRatings(ctx)
	suite.NoError(err)
	suite.Equal(Rating{UserId: 1, ItemId: 3, Rating: 1}, stored[1])

	// reject invalid rating
	err = suite.BatchInsertRatings(ctx, []Rating{{UserId: 3, ItemId: 1, Rating: 7}})
	suite.True(errors.Is(err, errors.NotValid))
	stored, err = suite.GetRatings(ctx)
	suite.NoError(err)
	suite.Len(stored, 3)
}

func (suite *SQLiteTestSuite) TestPurge() {
	ctx := context.Background()
	suite.NoError(suite.BatchInsertItems(ctx, []Item{{ItemId: 1, Title: "Toy Story"}}))
	suite.NoError(suite.BatchInsertRatings(ctx, []Rating{{UserId: 1, ItemId: 1, Rating: 5}}))
	suite.NoError(suite.Purge())
	items, err := suite.GetItems(ctx)
	suite.NoError(err)
	suite.Empty(items)
	ratings, err := suite.GetRatings(ctx)
	suite.NoError(err)
	suite.Empty(ratings)
}

func (suite *SQLiteTestSuite) TestPing() {
	suite.NoError(suite.Ping())
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

func TestOpenUnknownDatabase(t *testing.T) {
	_, err := Open("redis://localhost:6379", "")
	assert.Error(t, err)
}

func TestValidateRating(t *testing.T) {
	assert.NoError(t, ValidateRating(0.5))
	assert.NoError(t, ValidateRating(3.5))
	assert.NoError(t, ValidateRating(5))
	assert.True(t, errors.Is(ValidateRating(0), errors.NotValid))
	assert.True(t, errors.Is(ValidateRating(5.5), errors.NotValid))
	assert.True(t, errors.Is(ValidateRating(3.3), errors.NotValid))
}
