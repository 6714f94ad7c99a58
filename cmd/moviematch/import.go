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

package main

import (
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const importBatchSize = 1000

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import movies or ratings from CSV files into the data store",
}

var importItemsCommand = &cobra.Command{
	Use:   "items CSV",
	Short: "Import movies (movieId,title,genres,overview)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := data.LoadItemsFromCSV(args[0])
		if err != nil {
			return errors.Annotatef(err, "failed to read %s", args[0])
		}
		database, err := openDatabase()
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		bar := progressbar.Default(int64(len(items)), "import movies")
		for _, chunk := range lo.Chunk(items, importBatchSize) {
			if err = database.BatchInsertItems(cmd.Context(), chunk); err != nil {
				return errors.Trace(err)
			}
			_ = bar.Add(len(chunk))
		}
		_ = bar.Finish()
		log.Logger().Info("import movies complete", zap.Int("n_items", len(items)))
		return nil
	},
}

var importRatingsCommand = &cobra.Command{
	Use:   "ratings CSV",
	Short: "Import ratings (userId,movieId,rating[,timestamp])",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ratings, err := data.LoadRatingsFromCSV(args[0])
		if err != nil {
			return errors.Annotatef(err, "failed to read %s", args[0])
		}
		database, err := openDatabase()
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		bar := progressbar.Default(int64(len(ratings)), "import ratings")
		for _, chunk := range lo.Chunk(ratings, importBatchSize) {
			if err = database.BatchInsertRatings(cmd.Context(), chunk); err != nil {
				return errors.Trace(err)
			}
			_ = bar.Add(len(chunk))
		}
		_ = bar.Finish()
		log.Logger().Info("import ratings complete", zap.Int("n_ratings", len(ratings)))
		return nil
	},
}

func init() {
	importCommand.AddCommand(importItemsCommand, importRatingsCommand)
	rootCommand.AddCommand(importCommand)
}
