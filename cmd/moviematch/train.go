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
	"fmt"

	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/model/cf"
	"github.com/juju/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train the collaborative filtering model from stored ratings",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return errors.Trace(err)
		}
		defer database.Close()
		items, err := database.GetItems(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		rawRatings, err := database.GetRatings(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		ratings := dataset.NewRatings(dataset.NewCatalog(items), rawRatings)
		if ratings.Count() == 0 {
			return errors.NotFoundf("ratings")
		}

		svd := cf.NewSVD(cf.Params{
			NFactors:    conf.Model.NFactors,
			NEpochs:     conf.Model.NEpochs,
			Lr:          conf.Model.Lr,
			Reg:         conf.Model.Reg,
			InitMean:    conf.Model.InitMean,
			InitStdDev:  conf.Model.InitStdDev,
			RandomState: conf.Model.RandomState,
		})
		bar := progressbar.Default(int64(conf.Model.NEpochs), "train model")
		fitConfig := cf.NewFitConfig().
			SetVerbose(conf.Model.Verbose).
			SetOnEpoch(func(epoch int, rmse float32) {
				bar.Describe(fmt.Sprintf("train model (RMSE %.4f)", rmse))
				_ = bar.Add(1)
			})
		score, err := svd.Fit(cmd.Context(), ratings, fitConfig)
		if err != nil {
			return errors.Trace(err)
		}
		_ = bar.Finish()
		if err = svd.Save(conf.Model.Path); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save model", zap.String("path", conf.Model.Path), zap.Float32("RMSE", score.RMSE))
		return nil
	},
}

func init() {
	rootCommand.AddCommand(trainCommand)
}
