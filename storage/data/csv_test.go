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

package data

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestReadLines(t *testing.T) {
	text := "1,\"Hello, World\",x\n" +
		"2,\"Say \"\"Hi\"\"\",y\n" +
		"3,\"multi\nline\",z\n"
	var lines [][]string
	err := ReadLines(bufio.NewScanner(strings.NewReader(text)), ",", func(_ int, fields []string) bool {
		lines = append(lines, fields)
		return true
	})
	assert.NoError(t, err)
	assert.Equal(t, [][]string{
		{"1", "Hello, World", "x"},
		{"2", "Say \"Hi\"", "y"},
		{"3", "multi\r\nline", "z"},
	}, lines)
}

func TestLoadItems(t *testing.T) {
	text := "movieId,title,genres,overview\n" +
		"1,Toy Story (1995),Adventure|Animation|Children,\"Woody, a cowboy doll, is jealous.\"\n" +
		"2,Superman,(no genres listed),\n"
	items, err := LoadItems(strings.NewReader(text))
	assert.NoError(t, err)
	assert.Equal(t, []Item{
		{ItemId: 1, Title: "Toy Story (1995)", Overview: "Woody, a cowboy doll, is jealous.", Genres: []string{"Adventure", "Animation", "Children"}},
		{ItemId: 2, Title: "Superman", Genres: []string{}},
	}, items)

	// column order follows the header
	items, err = LoadItems(strings.NewReader("Title,MovieId\nTerminator,3\n"))
	assert.NoError(t, err)
	assert.Equal(t, []Item{{ItemId: 3, Title: "Terminator", Genres: []string{}}}, items)

	// missing column
	_, err = LoadItems(strings.NewReader("movieId,genres\n1,Action\n"))
	assert.True(t, errors.Is(err, errors.NotFound))

	// invalid id
	_, err = LoadItems(strings.NewReader("movieId,title\nabc,Terminator\n"))
	assert.Error(t, err)
}

func TestLoadRatings(t *testing.T) {
	text := "userId,movieId,rating,timestamp\n" +
		"1,1,4.0,964982703\n" +
		"1,3,4.5,964981247\n" +
		"2,1,2.5,964982224\n"
	ratings, err := LoadRatings(strings.NewReader(text))
	assert.NoError(t, err)
	assert.Equal(t, []Rating{
		{UserId: 1, ItemId: 1, Rating: 4},
		{UserId: 1, ItemId: 3, Rating: 4.5},
		{UserId: 2, ItemId: 1, Rating: 2.5},
	}, ratings)

	// rating out of scale
	_, err = LoadRatings(strings.NewReader("userId,movieId,rating\n1,1,9\n"))
	assert.True(t, errors.Is(err, errors.NotValid))

	// missing column
	_, err = LoadRatings(strings.NewReader("userId,rating\n1,4\n"))
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestLoadFromCSV(t *testing.T) {
	dir := t.TempDir()
	itemsPath := filepath.Join(dir, "movies.csv")
	ratingsPath := filepath.Join(dir, "ratings.csv")
	assert.NoError(t, os.WriteFile(itemsPath, []byte("movieId,title\n1,Toy Story\n"), 0644))
	assert.NoError(t, os.WriteFile(ratingsPath, []byte("userId,movieId,rating\n1,1,5\n"), 0644))

	items, err := LoadItemsFromCSV(itemsPath)
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	ratings, err := LoadRatingsFromCSV(ratingsPath)
	assert.NoError(t, err)
	assert.Len(t, ratings, 1)

	_, err = LoadItemsFromCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
