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
	"net/http"

	"github.com/sunbird-storage/sunbird/common/srv"
	"go.uber.org/zap"
)

// Recover converts handler panics into 500 responses.
func Recover(logger srv.LowLevelLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			defer func() {
				if e := recover(); e != nil {
					logger.Error("PANIC in handler", zap.String("path", request.URL.Path), zap.Any("err", e))
					writer.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(writer, request)
		})
	}
}
