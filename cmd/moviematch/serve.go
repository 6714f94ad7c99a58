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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/logics"
	"github.com/gorse-io/moviematch/server"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the RESTful API server",
	Long:  "Start the RESTful API server. Send SIGHUP to reload movies, ratings and the model.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if host, _ := cmd.Flags().GetString("host"); cmd.Flags().Changed("host") {
			conf.Server.Host = host
		}
		if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
			conf.Server.Port = port
		}
		recommender, err := newRecommender(cmd.Context())
		if err != nil {
			return errors.Trace(err)
		}
		s := server.NewServer(conf, recommender)

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signals)
		done := make(chan struct{})
		defer close(done)
		go watchSignals(signals, done, func() {
			reload(cmd.Context(), recommender)
		}, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				log.Logger().Error("failed to shutdown http server", zap.Error(err))
			}
		})
		return errors.Trace(s.Serve())
	},
}

// watchSignals reloads on SIGHUP and shuts down on any other signal. It returns after a
// shutdown or once done is closed.
func watchSignals(signals <-chan os.Signal, done <-chan struct{}, onReload, onShutdown func()) {
	for {
		select {
		case <-done:
			return
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				onReload()
				continue
			}
			onShutdown()
			return
		}
	}
}

func reload(ctx context.Context, recommender *logics.Recommender) {
	database, err := openDatabase()
	if err != nil {
		log.Logger().Error("failed to reload", zap.Error(err))
		return
	}
	defer database.Close()
	catalog, ratings, model, err := loadSnapshot(ctx, database)
	if err != nil {
		log.Logger().Error("failed to reload", zap.Error(err))
		return
	}
	recommender.Reload(catalog, ratings, model)
	log.Logger().Info("reload complete", zap.Int("n_items", catalog.Count()))
}

func init() {
	serveCommand.Flags().String("host", "127.0.0.1", "host of RESTful API")
	serveCommand.Flags().Int("port", 8088, "port of RESTful API")
	rootCommand.AddCommand(serveCommand)
}
