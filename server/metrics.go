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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "moviematch",
		Subsystem: "server",
		Name:      "recommend_requests_total",
	}, []string{"engine", "status"})
	RecommendSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "moviematch",
		Subsystem: "server",
		Name:      "recommend_seconds",
	}, []string{"engine"})
	RateLimitedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "moviematch",
		Subsystem: "server",
		Name:      "rate_limited_requests_total",
	})
)
