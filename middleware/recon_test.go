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
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunbird-storage/sunbird/common/srv"
)

func readReconFile(t *testing.T, dir, source string) map[string]interface{} {
	filedata, err := ioutil.ReadFile(filepath.Join(dir, source+".recon"))
	require.Nil(t, err)
	var data map[string]interface{}
	require.Nil(t, json.Unmarshal(filedata, &data))
	return data
}

func TestDumpReconCacheWritesAndMerges(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"account_audits_passed": 5,
	}))
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"account_audits_failed": 1,
	}))
	data := readReconFile(t, dir, "account")
	assert.EqualValues(t, 5, data["account_audits_passed"])
	assert.EqualValues(t, 1, data["account_audits_failed"])
}

func TestDumpReconCacheNilDeletesKey(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"account_audits_passed": 5,
	}))
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"account_audits_passed": nil,
	}))
	data := readReconFile(t, dir, "account")
	_, ok := data["account_audits_passed"]
	assert.False(t, ok)
}

func TestDumpReconCacheMergesSubMaps(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"stats": map[string]interface{}{"passed": 5, "failed": 0},
	}))
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"stats": map[string]interface{}{"failed": 2},
	}))
	data := readReconFile(t, dir, "account")
	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 5, stats["passed"])
	assert.EqualValues(t, 2, stats["failed"])
}

func reconRequest(t *testing.T, handler http.Handler, method string) *httptest.ResponseRecorder {
	req, err := http.NewRequest("GET", "/recon/"+method, nil)
	require.Nil(t, err)
	req = srv.SetVars(req, map[string]string{"method": method})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestReconHandlerAuditor(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	require.Nil(t, DumpReconCache(dir, "account", map[string]interface{}{
		"account_audits_passed": 5,
	}))
	w := reconRequest(t, ReconHandler(dir, "account"), "auditor")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "account_audits_passed")
}

func TestReconHandlerMem(t *testing.T) {
	w := reconRequest(t, ReconHandler("", "account"), "mem")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReconHandlerUnknownMethod(t *testing.T) {
	w := reconRequest(t, ReconHandler("", "account"), "uptime")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
