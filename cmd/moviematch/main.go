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
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/logics"
	"github.com/gorse-io/moviematch/model/cf"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Build information, overridden via ldflags.
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

var conf *config.Config

var rootCommand = &cobra.Command{
	Use:           "moviematch",
	Short:         "Recommend movies from three movies you like.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
		// load config
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		if conf, err = config.LoadConfig(configPath); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Debug("load config", zap.String("config", configPath),
			zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)))
		return nil
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	PersistentPreRun: func(*cobra.Command, []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version:\t %s\nGit commit:\t %s\nBuilt:\t\t %s\nGo version:\t %s\nOS/Arch:\t %s/%s\n",
			Version, GitCommit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.AddCommand(versionCommand)
}

func main() {
	err := rootCommand.Execute()
	if err != nil {
		log.Logger().Error("failed to execute", zap.Error(err))
	}
	log.CloseLogger()
	if err != nil {
		os.Exit(1)
	}
}

// openDatabase connects to the data store and creates tables if needed.
func openDatabase() (data.Database, error) {
	database, err := data.Open(conf.Database.DataStore, conf.Database.TablePrefix)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open %s", log.RedactDBURL(conf.Database.DataStore))
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Trace(err)
	}
	return database, nil
}

// loadSnapshot reads movies and ratings from the data store and the model from its artifact.
// A missing artifact leaves the model nil.
func loadSnapshot(ctx context.Context, database data.Database) (*dataset.Catalog, *dataset.Ratings, cf.FactorModel, error) {
	items, err := database.GetItems(ctx)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	rawRatings, err := database.GetRatings(ctx)
	if err != nil {
		return nil, nil, nil, errors.Trace(err)
	}
	catalog := dataset.NewCatalog(items)
	ratings := dataset.NewRatings(catalog, rawRatings)
	log.Logger().Info("load dataset",
		zap.Int("n_items", catalog.Count()),
		zap.Int("n_ratings", ratings.Count()),
		zap.Int("n_dropped_ratings", ratings.CountDropped()))

	var model cf.FactorModel
	svd, err := cf.Load(conf.Model.Path)
	if errors.Is(err, errors.NotFound) {
		log.Logger().Warn("collaborative filtering disabled until a model is trained", zap.Error(err))
	} else if err != nil {
		return nil, nil, nil, errors.Trace(err)
	} else {
		model = svd
	}
	return catalog, ratings, model, nil
}

// newRecommender opens the data store and builds a recommender from its content.
func newRecommender(ctx context.Context) (*logics.Recommender, error) {
	database, err := openDatabase()
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()
	catalog, ratings, model, err := loadSnapshot(ctx, database)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return logics.NewRecommender(conf, catalog, ratings, model), nil
}
