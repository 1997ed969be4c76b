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

package srv

import (
	"context"
	"net/http"

	"github.com/dimfeld/httptreemux"
)

type varsKey struct{}

// SetVars returns a shallow copy of the request with the given path variables attached.
func SetVars(r *http.Request, vars map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), varsKey{}, vars))
}

// GetVars returns the path variables attached to the request, if any.
func GetVars(r *http.Request) map[string]string {
	vars, _ := r.Context().Value(varsKey{}).(map[string]string)
	return vars
}

type Router struct {
	*httptreemux.TreeMux
}

func (r *Router) Get(path string, handler http.Handler) {
	r.GET(path, wrapHandler(handler))
}

func (r *Router) Put(path string, handler http.Handler) {
	r.PUT(path, wrapHandler(handler))
}

func (r *Router) Post(path string, handler http.Handler) {
	r.POST(path, wrapHandler(handler))
}

func wrapHandler(h http.Handler) httptreemux.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, ps map[string]string) {
		h.ServeHTTP(w, SetVars(r, ps))
	}
}

func NewRouter() *Router {
	r := httptreemux.New()
	r.RedirectTrailingSlash = false
	r.RedirectCleanPath = false
	return &Router{TreeMux: r}
}
