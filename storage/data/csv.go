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
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/samber/lo"
)

const maxLineSize = 1 << 20

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) bool) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	for sc.Scan() {
		line := []rune(sc.Text())
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if string(line[i]) == sep && !quoted {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if !handler(lineCount, fields) {
				return nil
			}
			fields = []string{}
		}
		lineCount++
	}
	return sc.Err()
}

// columns maps lower-cased header names to field positions.
type columns map[string]int

func newColumns(header []string) columns {
	c := make(columns, len(header))
	for i, name := range header {
		c[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return c
}

func (c columns) require(names ...string) error {
	for _, name := range names {
		if _, ok := c[name]; !ok {
			return errors.NotFoundf("column %s", name)
		}
	}
	return nil
}

func (c columns) get(fields []string, name string) string {
	if i, ok := c[name]; ok && i < len(fields) {
		return strings.TrimSpace(fields[i])
	}
	return ""
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return sc
}

// LoadItems reads items from comma separated values with a header line. Columns movieId and
// title are required, genres (separated by '|') and overview are optional.
func LoadItems(r io.Reader) ([]Item, error) {
	var (
		items  []Item
		header columns
		err    error
	)
	if readErr := ReadLines(newScanner(r), ",", func(lineNumber int, fields []string) bool {
		if lineNumber == 0 {
			header = newColumns(fields)
			err = header.require("movieid", "title")
			return err == nil
		}
		var itemId int
		if itemId, err = strconv.Atoi(header.get(fields, "movieid")); err != nil {
			err = errors.Annotatef(err, "line %d", lineNumber+1)
			return false
		}
		item := Item{
			ItemId:   itemId,
			Title:    header.get(fields, "title"),
			Overview: header.get(fields, "overview"),
			Genres:   []string{},
		}
		if genres := header.get(fields, "genres"); genres != "" && genres != "(no genres listed)" {
			item.Genres = lo.Map(strings.Split(genres, "|"), func(genre string, _ int) string {
				return strings.TrimSpace(genre)
			})
		}
		items = append(items, item)
		return true
	}); readErr != nil {
		return nil, errors.Trace(readErr)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return items, nil
}

// LoadRatings reads ratings from comma separated values with a header line. Columns userId,
// movieId and rating are required, other columns are ignored.
func LoadRatings(r io.Reader) ([]Rating, error) {
	var (
		ratings []Rating
		header  columns
		err     error
	)
	if readErr := ReadLines(newScanner(r), ",", func(lineNumber int, fields []string) bool {
		if lineNumber == 0 {
			header = newColumns(fields)
			err = header.require("userid", "movieid", "rating")
			return err == nil
		}
		var (
			rating Rating
			value  float64
		)
		if rating.UserId, err = strconv.Atoi(header.get(fields, "userid")); err != nil {
			err = errors.Annotatef(err, "line %d", lineNumber+1)
			return false
		}
		if rating.ItemId, err = strconv.Atoi(header.get(fields, "movieid")); err != nil {
			err = errors.Annotatef(err, "line %d", lineNumber+1)
			return false
		}
		if value, err = strconv.ParseFloat(header.get(fields, "rating"), 32); err != nil {
			err = errors.Annotatef(err, "line %d", lineNumber+1)
			return false
		}
		rating.Rating = float32(value)
		if err = ValidateRating(rating.Rating); err != nil {
			err = errors.Annotatef(err, "line %d", lineNumber+1)
			return false
		}
		ratings = append(ratings, rating)
		return true
	}); readErr != nil {
		return nil, errors.Trace(readErr)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ratings, nil
}

// LoadItemsFromCSV reads items from a CSV file.
func LoadItemsFromCSV(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return LoadItems(f)
}

// LoadRatingsFromCSV reads ratings from a CSV file.
func LoadRatingsFromCSV(path string) ([]Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return LoadRatings(f)
}
