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

package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/moviematch/storage"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	MissingSeedSkip   = "skip"
	MissingSeedStrict = "strict"

	DedupMax  = "max"
	DedupSum  = "sum"
	DedupNone = "none"
)

// DefaultCollaborativeSeeds are offered when no seeds are given for collaborative filtering.
var DefaultCollaborativeSeeds = []string{"Superman", "Toy Story", "Terminator"}

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Model     ModelConfig     `mapstructure:"model"`
	Server    ServerConfig    `mapstructure:"server"`
}

type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type RecommendConfig struct {
	TopN          int                 `mapstructure:"top_n" validate:"gt=0"`
	NumJobs       int                 `mapstructure:"num_jobs" validate:"gte=1"`
	MissingSeed   string              `mapstructure:"missing_seed" validate:"oneof=skip strict"`
	Content       ContentConfig       `mapstructure:"content"`
	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
}

type ContentConfig struct {
	MaxFeatures   int           `mapstructure:"max_features" validate:"gt=0"`
	StopWords     bool          `mapstructure:"stop_words"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	CacheCapacity uint64        `mapstructure:"cache_capacity" validate:"gte=1"`
}

type CollaborativeConfig struct {
	HighRating   float32 `mapstructure:"high_rating" validate:"gte=0.5,lte=5"`
	PerUserLimit int     `mapstructure:"per_user_limit" validate:"gt=0"`
	Dedup        string  `mapstructure:"dedup" validate:"oneof=max sum none"`
}

// ModelConfig is the configuration of the latent factor model and its offline training.
type ModelConfig struct {
	Path        string  `mapstructure:"path" validate:"required"`
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStdDev  float32 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=0"`
}

type ServerConfig struct {
	Host      string  `mapstructure:"host"`
	Port      int     `mapstructure:"port" validate:"gte=0,lte=65535"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int64   `mapstructure:"burst" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://moviematch.db",
		},
		Recommend: RecommendConfig{
			TopN:        5,
			NumJobs:     1,
			MissingSeed: MissingSeedSkip,
			Content: ContentConfig{
				MaxFeatures:   2000,
				StopWords:     true,
				CacheTTL:      time.Hour,
				CacheCapacity: 4,
			},
			Collaborative: CollaborativeConfig{
				HighRating:   4,
				PerUserLimit: 5,
				Dedup:        DedupMax,
			},
		},
		Model: ModelConfig{
			Path:       "collab_model.bin",
			NFactors:   50,
			NEpochs:    20,
			Lr:         0.005,
			Reg:        0.02,
			InitStdDev: 0.1,
			Verbose:    5,
		},
		Server: ServerConfig{
			Host:  "127.0.0.1",
			Port:  8088,
			Burst: 100,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [recommend]
	v.SetDefault("recommend.top_n", defaultConfig.Recommend.TopN)
	v.SetDefault("recommend.num_jobs", defaultConfig.Recommend.NumJobs)
	v.SetDefault("recommend.missing_seed", defaultConfig.Recommend.MissingSeed)
	// [recommend.content]
	v.SetDefault("recommend.content.max_features", defaultConfig.Recommend.Content.MaxFeatures)
	v.SetDefault("recommend.content.stop_words", defaultConfig.Recommend.Content.StopWords)
	v.SetDefault("recommend.content.cache_ttl", defaultConfig.Recommend.Content.CacheTTL)
	v.SetDefault("recommend.content.cache_capacity", defaultConfig.Recommend.Content.CacheCapacity)
	// [recommend.collaborative]
	v.SetDefault("recommend.collaborative.high_rating", defaultConfig.Recommend.Collaborative.HighRating)
	v.SetDefault("recommend.collaborative.per_user_limit", defaultConfig.Recommend.Collaborative.PerUserLimit)
	v.SetDefault("recommend.collaborative.dedup", defaultConfig.Recommend.Collaborative.Dedup)
	// [model]
	v.SetDefault("model.path", defaultConfig.Model.Path)
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.rate_limit", defaultConfig.Server.RateLimit)
	v.SetDefault("server.burst", defaultConfig.Server.Burst)
}

// LoadConfig loads configuration from a TOML file (optional) and MOVIEMATCH_* environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetEnvPrefix("MOVIEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the configuration and reports every invalid field in one error.
func (config *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
		prefixes := []string{storage.SQLitePrefix, storage.MySQLPrefix, storage.PostgresPrefix, storage.PostgreSQLPrefix}
		for _, prefix := range prefixes {
			if strings.HasPrefix(fl.Field().String(), prefix) {
				return true
			}
		}
		return false
	}); err != nil {
		return errors.Trace(err)
	}

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return errors.Trace(err)
	}

	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.Trace(err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, fieldError.Namespace()+": "+fieldError.Translate(trans))
	}
	return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
}
