//  Copyright (c) 2018 Rackspace
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
//  implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package middleware

import (
	"fmt"
	"net/http"

	"github.com/uber-go/tally"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics counts requests, methods and response classes on the given scope.
func Metrics(metricsScope tally.Scope) func(http.Handler) http.Handler {
	requestsMetric := metricsScope.Counter("requests")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			w := &statusWriter{ResponseWriter: writer, status: 200}
			next.ServeHTTP(w, request)
			requestsMetric.Inc(1)
			metricsScope.Counter(request.Method + "_requests").Inc(1)
			metricsScope.Counter(fmt.Sprintf("%d_responses", w.status)).Inc(1)
		})
	}
}
