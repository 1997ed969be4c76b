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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterVars(t *testing.T) {
	router := NewRouter()
	var gotMethod string
	router.Get("/recon/:method", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = GetVars(r)["method"]
		w.WriteHeader(http.StatusOK)
	}))
	req, err := http.NewRequest("GET", "/recon/mem", nil)
	require.Nil(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mem", gotMethod)
}

func TestRouterNotFound(t *testing.T) {
	router := NewRouter()
	router.Get("/healthcheck", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req, err := http.NewRequest("GET", "/nope", nil)
	require.Nil(t, err)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVarsEmpty(t *testing.T) {
	req, err := http.NewRequest("GET", "/", nil)
	require.Nil(t, err)
	assert.Nil(t, GetVars(req))
}
