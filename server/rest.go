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
	"strconv"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"github.com/gorse-io/moviematch/base/log"
	"github.com/gorse-io/moviematch/config"
	"github.com/gorse-io/moviematch/logics"
	"github.com/gorse-io/moviematch/storage/data"
	"github.com/juju/errors"
	"github.com/juju/ratelimit"
	"go.uber.org/zap"
)

const (
	EngineContent       = "content"
	EngineCollaborative = "collaborative"

	RequestIdHeader = "X-Request-ID"

	SuccessMessage          = "We think you'll like:"
	InsufficientDataMessage = "Unfortunately there is not enough data on the selected movies to return recommendations"
	EmptyMessage            = "No movies to recommend for the selected movies"
	FailureMessage          = "Oops! Looks like this algorithm doesn't work. We'll need to fix it!"
)

// RestServer implements a REST-ful API server.
type RestServer struct {
	Config      *config.Config
	Recommender *logics.Recommender
	HttpHost    string
	HttpPort    int
	WebService  *restful.WebService
	limiter     *ratelimit.Bucket
}

// RecommendResponse is the recommendation list with a message for display.
type RecommendResponse struct {
	Status  logics.Status           `json:"status"`
	Message string                  `json:"message"`
	Items   []logics.Recommendation `json:"items"`
}

type HealthStatus struct {
	Ready    bool `json:"ready"`
	NumItems int  `json:"num_items"`
}

func requestId(request *restful.Request) string {
	return request.Request.Header.Get(RequestIdHeader)
}

// RequestIdFilter assigns an id to each request without one and echoes it in the response.
func RequestIdFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	id := req.Request.Header.Get(RequestIdHeader)
	if id == "" {
		id = uuid.New().String()
		req.Request.Header.Set(RequestIdHeader, id)
	}
	resp.Header().Set(RequestIdHeader, id)
	chain.ProcessFilter(req, resp)
}

func LogFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)
	log.RequestLogger(requestId(req)).Info(fmt.Sprintf("%s %s", req.Request.Method, req.Request.URL),
		zap.Int("status_code", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))
}

// RateLimitFilter rejects requests once the token bucket is exhausted.
func (s *RestServer) RateLimitFilter(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	if s.limiter != nil && s.limiter.TakeAvailable(1) == 0 {
		RateLimitedRequestsTotal.Inc()
		if err := resp.WriteErrorString(http.StatusTooManyRequests, "too many requests"); err != nil {
			log.Logger().Error("failed to write error", zap.Error(err))
		}
		return
	}
	chain.ProcessFilter(req, resp)
}

// CreateWebService creates web service.
func (s *RestServer) CreateWebService() {
	if s.Config.Server.RateLimit > 0 {
		s.limiter = ratelimit.NewBucketWithRate(s.Config.Server.RateLimit, max(s.Config.Server.Burst, 1))
	}
	ws := s.WebService
	ws.Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	ws.Path("/api/")
	ws.Filter(RequestIdFilter)
	ws.Filter(LogFilter)
	ws.Filter(s.RateLimitFilter)

	ws.Route(ws.GET("/health").To(s.health).
		Doc("Check whether movies are loaded.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
		Writes(HealthStatus{}))
	ws.Route(ws.GET("/items").To(s.getItems).
		Doc("Get movies available as seeds.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"item"}).
		Param(ws.QueryParameter("offset", "offset of returned movies").DataType("integer")).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes([]data.Item{}))
	ws.Route(ws.GET("/recommend/content").To(s.recommendContent).
		Doc("Recommend movies with overviews similar to seed movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.QueryParameter("seed", "title of a seed movie, given three times").DataType("string").AllowMultiple(true)).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes(RecommendResponse{}))
	ws.Route(ws.GET("/recommend/collaborative").To(s.recommendCollaborative).
		Doc("Recommend movies liked by users who liked seed movies.").
		Metadata(restfulspec.KeyOpenAPITags, []string{"recommendation"}).
		Param(ws.QueryParameter("seed", "title of a seed movie, given three times").DataType("string").AllowMultiple(true)).
		Param(ws.QueryParameter("n", "number of returned movies").DataType("integer")).
		Writes(RecommendResponse{}))
}

// ParseInt parses an integer query parameter. A missing parameter falls back to the default.
func ParseInt(request *restful.Request, name string, fallback int) (value int, err error) {
	valueString := request.QueryParameter(name)
	if valueString == "" {
		return fallback, nil
	}
	value, err = strconv.Atoi(valueString)
	if err != nil {
		return 0, errors.NotValidf("%s=%q", name, valueString)
	}
	return value, nil
}

func (s *RestServer) health(_ *restful.Request, response *restful.Response) {
	n := s.Recommender.Catalog().Count()
	Ok(response, HealthStatus{Ready: n > 0, NumItems: n})
}

func (s *RestServer) getItems(request *restful.Request, response *restful.Response) {
	offset, err := ParseInt(request, "offset", 0)
	if err != nil {
		BadRequest(response, err)
		return
	}
	n, err := ParseInt(request, "n", 100)
	if err != nil {
		BadRequest(response, err)
		return
	}
	Ok(response, s.Recommender.Items(offset, n))
}

func (s *RestServer) recommendContent(request *restful.Request, response *restful.Response) {
	s.recommend(EngineContent, s.Recommender.RecommendContent, request, response)
}

func (s *RestServer) recommendCollaborative(request *restful.Request, response *restful.Response) {
	s.recommend(EngineCollaborative, s.Recommender.RecommendCollaborative, request, response)
}

func (s *RestServer) recommend(engine string,
	recommender func(ctx context.Context, seeds []string, topN int) (*logics.Result, error),
	request *restful.Request, response *restful.Response) {
	start := time.Now()
	seeds := request.QueryParameters("seed")
	n, err := ParseInt(request, "n", s.Config.Recommend.TopN)
	if err != nil {
		RecommendRequestsTotal.WithLabelValues(engine, "error").Inc()
		BadRequest(response, err)
		return
	}
	result, err := recommender(request.Request.Context(), seeds, n)
	if err != nil {
		RecommendRequestsTotal.WithLabelValues(engine, "error").Inc()
		log.RequestLogger(requestId(request)).Error("failed to recommend",
			zap.String("engine", engine), zap.Strings("seeds", seeds), zap.Error(err))
		Error(response, err)
		return
	}
	RecommendSeconds.WithLabelValues(engine).Observe(time.Since(start).Seconds())
	RecommendRequestsTotal.WithLabelValues(engine, string(result.Status)).Inc()
	Ok(response, RecommendResponse{
		Status:  result.Status,
		Message: Message(result.Status),
		Items:   result.Items,
	})
}

// Message returns the text shown along with a result.
func Message(status logics.Status) string {
	switch status {
	case logics.StatusOK:
		return SuccessMessage
	case logics.StatusInsufficientData:
		return InsufficientDataMessage
	default:
		return EmptyMessage
	}
}

// Error translates an error into a response. Invalid requests and unknown movies are reported
// as is, other errors are replaced by a generic message.
func Error(response *restful.Response, err error) {
	switch {
	case errors.Is(err, errors.NotValid):
		BadRequest(response, err)
	case errors.Is(err, errors.NotFound):
		PageNotFound(response, err)
	default:
		InternalServerError(response, err)
	}
}

// BadRequest returns a bad request error.
func BadRequest(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Warn("bad request", zap.Error(err))
	if err = response.WriteError(http.StatusBadRequest, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// InternalServerError returns an internal server error. The cause is logged only.
func InternalServerError(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	log.Logger().Error("internal server error", zap.Error(err))
	if err = response.WriteErrorString(http.StatusInternalServerError, FailureMessage); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// PageNotFound returns a not found error.
func PageNotFound(response *restful.Response, err error) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteError(http.StatusNotFound, err); err != nil {
		log.Logger().Error("failed to write error", zap.Error(err))
	}
}

// Ok sends the content as JSON to the client.
func Ok(response *restful.Response, content interface{}) {
	response.Header().Set("Access-Control-Allow-Origin", "*")
	if err := response.WriteAsJson(content); err != nil {
		log.Logger().Error("failed to write json", zap.Error(err))
	}
}
