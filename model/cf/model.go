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

package cf

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/common/floats"
	"github.com/gorse-io/moviematch/dataset"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// FactorModel predicts the rating a user would give to an item. Predictions are deterministic
// for the same model state.
type FactorModel interface {
	Predict(userId, itemId int) float32
}

// Params are hyper-parameters of SVD.
type Params struct {
	NFactors    int
	NEpochs     int
	Lr          float32 // learning rate
	Reg         float32 // regularization strength
	InitMean    float32 // mean of gaussian initial parameter
	InitStdDev  float32 // standard deviation of gaussian initial parameter
	RandomState int64
}

func NewParams() Params {
	return Params{
		NFactors:   50,
		NEpochs:    20,
		Lr:         0.005,
		Reg:        0.02,
		InitStdDev: 0.1,
	}
}

type Score struct {
	RMSE float32
}

type FitConfig struct {
	Verbose int
	// OnEpoch is called after each epoch with the training RMSE.
	OnEpoch func(epoch int, rmse float32)
}

func NewFitConfig() *FitConfig {
	return &FitConfig{Verbose: 10}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetOnEpoch(onEpoch func(epoch int, rmse float32)) *FitConfig {
	config.OnEpoch = onEpoch
	return config
}

// SVD is the biased matrix factorization trained by stochastic gradient descent:
//
//	\hat r_{ui} = \mu + b_u + b_i + q_i^Tp_u
//
// Predictions are clipped to the rating scale.
type SVD struct {
	Params
	UserIds         []int
	ItemIds         []int
	UserPredictable *bitset.BitSet
	ItemPredictable *bitset.BitSet
	// Model parameters
	GlobalMean float32     // \mu
	UserBias   []float32   // b_u
	ItemBias   []float32   // b_i
	UserFactor [][]float32 // p_u
	ItemFactor [][]float32 // q_i

	userIndex map[int]int32
	itemIndex map[int]int32
}

// NewSVD creates a SVD model.
func NewSVD(params Params) *SVD {
	return &SVD{Params: params}
}

func (svd *SVD) buildIndex() {
	svd.userIndex = make(map[int]int32, len(svd.UserIds))
	for i, userId := range svd.UserIds {
		svd.userIndex[userId] = int32(i)
	}
	svd.itemIndex = make(map[int]int32, len(svd.ItemIds))
	for i, itemId := range svd.ItemIds {
		svd.itemIndex[itemId] = int32(i)
	}
}

// IsUserPredictable returns false if user has no feedback and its embedding vector never be trained.
func (svd *SVD) IsUserPredictable(userId int) bool {
	userIndex, ok := svd.userIndex[userId]
	return ok && svd.UserPredictable.Test(uint(userIndex))
}

// IsItemPredictable returns false if item has no feedback and its embedding vector never be trained.
func (svd *SVD) IsItemPredictable(itemId int) bool {
	itemIndex, ok := svd.itemIndex[itemId]
	return ok && svd.ItemPredictable.Test(uint(itemIndex))
}

// Predict the rating given by a user to an item. Unknown users or items fall back to biases.
func (svd *SVD) Predict(userId, itemId int) float32 {
	userIndex, ok := svd.userIndex[userId]
	if !ok || !svd.UserPredictable.Test(uint(userIndex)) {
		log.Logger().Debug("unknown user", zap.Int("user_id", userId))
		userIndex = -1
	}
	itemIndex, ok := svd.itemIndex[itemId]
	if !ok || !svd.ItemPredictable.Test(uint(itemIndex)) {
		log.Logger().Debug("unknown item", zap.Int("item_id", itemId))
		itemIndex = -1
	}
	return max(data.MinRating, min(data.MaxRating, svd.internalPredict(userIndex, itemIndex)))
}

func (svd *SVD) internalPredict(userIndex, itemIndex int32) float32 {
	ret := svd.GlobalMean
	// + b_u
	if userIndex >= 0 {
		ret += svd.UserBias[userIndex]
	}
	// + b_i
	if itemIndex >= 0 {
		ret += svd.ItemBias[itemIndex]
	}
	// + q_i^Tp_u
	if userIndex >= 0 && itemIndex >= 0 {
		ret += floats.Dot(svd.UserFactor[userIndex], svd.ItemFactor[itemIndex])
	}
	return ret
}

// Fit the SVD model on ratings. Users are indexed in ascending id and items in catalog order.
func (svd *SVD) Fit(ctx context.Context, ratings *dataset.Ratings, config *FitConfig) (Score, error) {
	if svd.NFactors <= 0 || svd.NEpochs <= 0 {
		return Score{}, errors.NotValidf("n_factors %d, n_epochs %d", svd.NFactors, svd.NEpochs)
	}
	if config == nil {
		config = NewFitConfig()
	}
	log.Logger().Info("fit svd",
		zap.Int("n_ratings", ratings.Count()),
		zap.Int("n_users", len(ratings.Users())),
		zap.Int("n_items", ratings.Catalog().Count()),
		zap.Any("params", svd.Params))

	// index users and items
	svd.UserIds = append([]int(nil), ratings.Users()...)
	svd.ItemIds = make([]int, 0, ratings.Catalog().Count())
	for _, item := range ratings.Catalog().GetItems() {
		svd.ItemIds = append(svd.ItemIds, item.ItemId)
	}
	svd.buildIndex()
	svd.UserPredictable = bitset.New(uint(len(svd.UserIds)))
	for userIndex, userId := range svd.UserIds {
		if len(ratings.UserRatings(userId)) > 0 {
			svd.UserPredictable.Set(uint(userIndex))
		}
	}
	svd.ItemPredictable = bitset.New(uint(len(svd.ItemIds)))
	for itemIndex, itemId := range svd.ItemIds {
		if len(ratings.ItemRatings(itemId)) > 0 {
			svd.ItemPredictable.Set(uint(itemIndex))
		}
	}

	// initialize parameters
	rng := rand.New(rand.NewSource(svd.RandomState))
	svd.GlobalMean = 0
	for _, rating := range ratings.GetRatings() {
		svd.GlobalMean += rating.Rating
	}
	if ratings.Count() > 0 {
		svd.GlobalMean /= float32(ratings.Count())
	}
	svd.UserBias = make([]float32, len(svd.UserIds))
	svd.ItemBias = make([]float32, len(svd.ItemIds))
	svd.UserFactor = normalMatrix(rng, len(svd.UserIds), svd.NFactors, svd.InitMean, svd.InitStdDev)
	svd.ItemFactor = normalMatrix(rng, len(svd.ItemIds), svd.NFactors, svd.InitMean, svd.InitStdDev)

	// create buffers
	userFactor := make([]float32, svd.NFactors)
	grad := make([]float32, svd.NFactors)

	var score Score
	for epoch := 1; epoch <= svd.NEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Score{}, errors.Trace(err)
		}
		fitStart := time.Now()
		var cost float32
		for _, i := range rng.Perm(ratings.Count()) {
			rating := ratings.GetRatings()[i]
			userIndex := svd.userIndex[rating.UserId]
			itemIndex := svd.itemIndex[rating.ItemId]
			// e_{ui} = r - \hat r
			diff := rating.Rating - svd.internalPredict(userIndex, itemIndex)
			cost += diff * diff
			// b_u <- b_u + \gamma (e_{ui} - \lambda b_u)
			svd.UserBias[userIndex] += svd.Lr * (diff - svd.Reg*svd.UserBias[userIndex])
			// b_i <- b_i + \gamma (e_{ui} - \lambda b_i)
			svd.ItemBias[itemIndex] += svd.Lr * (diff - svd.Reg*svd.ItemBias[itemIndex])
			// p_u <- p_u + \gamma (e_{ui} q_i - \lambda p_u)
			copy(userFactor, svd.UserFactor[userIndex])
			copy(grad, svd.ItemFactor[itemIndex])
			floats.MulConst(grad, diff)
			floats.MulConstAdd(userFactor, -svd.Reg, grad)
			floats.MulConstAdd(grad, svd.Lr, svd.UserFactor[userIndex])
			// q_i <- q_i + \gamma (e_{ui} p_u - \lambda q_i)
			copy(grad, userFactor)
			floats.MulConst(grad, diff)
			floats.MulConstAdd(svd.ItemFactor[itemIndex], -svd.Reg, grad)
			floats.MulConstAdd(grad, svd.Lr, svd.ItemFactor[itemIndex])
		}
		if ratings.Count() > 0 {
			score.RMSE = math32.Sqrt(cost / float32(ratings.Count()))
		}
		if config.Verbose > 0 && (epoch%config.Verbose == 0 || epoch == svd.NEpochs) {
			log.Logger().Info(fmt.Sprintf("fit svd %v/%v", epoch, svd.NEpochs),
				zap.String("fit_time", time.Since(fitStart).String()),
				zap.Float32("RMSE", score.RMSE))
		}
		if config.OnEpoch != nil {
			config.OnEpoch(epoch, score.RMSE)
		}
	}
	log.Logger().Info("fit svd complete", zap.Float32("RMSE", score.RMSE))
	return score, nil
}

// Invalid returns true if the model has never been fitted or loaded.
func (svd *SVD) Invalid() bool {
	return svd == nil ||
		svd.UserFactor == nil ||
		svd.ItemFactor == nil ||
		svd.UserPredictable == nil ||
		svd.ItemPredictable == nil
}

func normalMatrix(rng *rand.Rand, row, col int, mean, stdDev float32) [][]float32 {
	ret := make([][]float32, row)
	for i := range ret {
		ret[i] = make([]float32, col)
		for j := range ret[i] {
			ret[i][j] = float32(rng.NormFloat64())*stdDev + mean
		}
	}
	return ret
}
