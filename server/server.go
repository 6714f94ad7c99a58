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

package server

import (
	"context"
	"fmt"
	"net/http"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/logics"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

const apiDocsPath = "/apidocs.json"

// Server serves recommendations over HTTP.
type Server struct {
	RestServer
	httpServer *http.Server
}

// NewServer creates a server for a recommender.
func NewServer(cfg *config.Config, recommender *logics.Recommender) *Server {
	return &Server{
		RestServer: RestServer{
			Config:      cfg,
			Recommender: recommender,
			HttpHost:    cfg.Server.Host,
			HttpPort:    cfg.Server.Port,
		},
	}
}

// Handler builds the container with REST APIs, OpenAPI documents and Prometheus metrics.
func (s *Server) Handler() http.Handler {
	s.WebService = new(restful.WebService)
	s.CreateWebService()
	container := restful.NewContainer()
	container.Filter(otelrestful.OTelFilter("moviematch"))
	container.Add(s.WebService)
	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     apiDocsPath,
	}))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// Serve starts the HTTP server and blocks until it is shut down.
func (s *Server) Serve() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.HttpHost, s.HttpPort),
		Handler: s.Handler(),
	}
	log.Logger().Info("start http server",
		zap.String("url", fmt.Sprintf("http://%s:%d", s.HttpHost, s.HttpPort)),
		zap.String("api_docs", fmt.Sprintf("http://%s:%d%s", s.HttpHost, s.HttpPort, apiDocsPath)))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Trace(err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return errors.Trace(s.httpServer.Shutdown(ctx))
}
