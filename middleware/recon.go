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
	"bufio"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/load"
	"github.com/shirou/gopsutil/mem"
	"github.com/sunbird-storage/sunbird/common/fs"
	"github.com/sunbird-storage/sunbird/common/srv"
)

// DumpReconCache merges cacheData into the recon cache file for the given
// source.  A nil value removes the key; an empty map removes the entry.
func DumpReconCache(reconCachePath string, source string, cacheData map[string]interface{}) error {
	reconFile := filepath.Join(reconCachePath, source+".recon")

	lock, err := fs.LockPath(filepath.Dir(reconFile), 5*time.Second)
	if err != nil {
		return err
	}
	defer lock.Close()

	reconData := make(map[string]interface{})
	if filedata, _ := ioutil.ReadFile(reconFile); len(filedata) > 0 {
		var data interface{}
		if json.Unmarshal(filedata, &data) == nil {
			if d, ok := data.(map[string]interface{}); ok {
				reconData = d
			}
		}
	}
	for key, item := range cacheData {
		switch item := item.(type) {
		case map[string]interface{}:
			if len(item) == 0 {
				delete(reconData, key)
				continue
			}
			if _, ok := reconData[key].(map[string]interface{}); !ok {
				reconData[key] = make(map[string]interface{})
			}
			for itemk, itemv := range item {
				if itemv == nil {
					delete(reconData[key].(map[string]interface{}), itemk)
				} else {
					reconData[key].(map[string]interface{})[itemk] = itemv
				}
			}
		case nil:
			delete(reconData, key)
		default:
			reconData[key] = item
		}
	}
	newdata, err := json.Marshal(reconData)
	if err != nil {
		return err
	}
	f, err := fs.NewAtomicFileWriter(reconCachePath, reconCachePath)
	if err != nil {
		return err
	}
	defer f.Abandon()
	if _, err := f.Write(newdata); err != nil {
		return err
	}
	return f.Save(reconFile)
}

// getMem dumps the contents of /proc/meminfo if it's available, otherwise it
// pulls what it can from gopsutil/mem.
func getMem() interface{} {
	if fp, err := os.Open("/proc/meminfo"); err == nil {
		defer fp.Close()
		results := make(map[string]string)
		scanner := bufio.NewScanner(fp)
		for scanner.Scan() {
			vals := strings.SplitN(scanner.Text(), ":", 2)
			if len(vals) == 2 {
				results[strings.TrimSpace(vals[0])] = strings.TrimSpace(vals[1])
			}
		}
		return results
	}
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return nil
	}
	swap, err := mem.SwapMemory()
	if err != nil {
		return nil
	}
	return map[string]uint64{
		"MemTotal":  vmem.Total,
		"MemFree":   vmem.Available,
		"SwapTotal": swap.Total,
		"SwapFree":  swap.Free,
	}
}

func getLoad() interface{} {
	avg, err := load.Avg()
	if err != nil {
		return nil
	}
	return map[string]float64{"1m": avg.Load1, "5m": avg.Load5, "15m": avg.Load15}
}

func getReconCache(reconCachePath, source string) interface{} {
	filedata, err := ioutil.ReadFile(filepath.Join(reconCachePath, source+".recon"))
	if err != nil {
		return nil
	}
	var data interface{}
	if json.Unmarshal(filedata, &data) != nil {
		return nil
	}
	return data
}

// ReconHandler serves operational data: system memory and load, plus the
// cached audit stats for the given source.
func ReconHandler(reconCachePath string, source string) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var content interface{}
		switch srv.GetVars(request)["method"] {
		case "mem":
			content = getMem()
		case "load":
			content = getLoad()
		case "auditor":
			content = getReconCache(reconCachePath, source)
		default:
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		if content == nil {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		serialized, err := json.Marshal(content)
		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusOK)
		writer.Write(serialized)
	})
}
