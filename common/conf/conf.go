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

package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	ini "github.com/vaughan0/go-ini"
)

// Config represents a loaded ini configuration, possibly merged from a .conf.d directory.
type Config struct {
	ini.File
	Source string
}

// Get fetches a value from the Config, falling back to the DEFAULT section.
func (f Config) Get(section string, key string) (string, bool) {
	if value, ok := f.File.Get(section, key); ok {
		return value, true
	}
	if value, ok := f.File.Get("DEFAULT", key); ok {
		return value, true
	}
	return "", false
}

// GetDefault returns a value from the config, or dfl if it isn't set.
func (f Config) GetDefault(section string, key string, dfl string) string {
	if value, ok := f.Get(section, key); ok {
		return value
	}
	return dfl
}

// GetBool loads a true/false value from the config, accepting "yes", "true", "1", "t", etc.
func (f Config) GetBool(section string, key string, dfl bool) bool {
	if value, ok := f.Get(section, key); ok {
		return LooksTrue(value)
	}
	return dfl
}

// GetInt loads an entry from the config, parsed as an integer.
func (f Config) GetInt(section string, key string, dfl int64) int64 {
	if value, ok := f.Get(section, key); ok {
		val, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			panic(fmt.Sprintf("Error parsing integer %s/%s from config.", section, key))
		}
		return val
	}
	return dfl
}

// GetFloat loads an entry from the config, parsed as a float.
func (f Config) GetFloat(section string, key string, dfl float64) float64 {
	if value, ok := f.Get(section, key); ok {
		val, err := strconv.ParseFloat(value, 64)
		if err != nil {
			panic(fmt.Sprintf("Error parsing float %s/%s from config.", section, key))
		}
		return val
	}
	return dfl
}

// HasSection determines whether the section exists in the ini file.
func (f Config) HasSection(section string) bool {
	return f.File[section] != nil
}

// LooksTrue returns true if a string looks like it means true to a human.
func LooksTrue(check string) bool {
	check = strings.TrimSpace(strings.ToLower(check))
	return check == "true" || check == "yes" || check == "1" || check == "on" || check == "t" || check == "y"
}

func (f Config) mergeFile(path string) error {
	loaded, err := ini.LoadFile(path)
	if err != nil {
		return err
	}
	for section, entries := range loaded {
		if f.File[section] == nil {
			f.File[section] = make(map[string]string)
		}
		for key, value := range entries {
			f.File[section][key] = value
		}
	}
	return nil
}

// LoadConfig loads a Config from a file or a .conf.d style directory.
func LoadConfig(path string) (Config, error) {
	config := Config{File: ini.File{}, Source: path}
	info, err := os.Stat(path)
	if err != nil {
		return config, err
	}
	if !info.IsDir() {
		return config, config.mergeFile(path)
	}
	entries, err := filepath.Glob(filepath.Join(path, "*.conf"))
	if err != nil {
		return config, err
	}
	if len(entries) == 0 {
		return config, fmt.Errorf("No config files found in %s", path)
	}
	sort.Strings(entries)
	for _, entry := range entries {
		if err := config.mergeFile(entry); err != nil {
			return config, err
		}
	}
	return config, nil
}

// LoadConfigs finds and loads any configs that exist for the given path, which
// may name a single config file/directory or a "-server" style directory
// holding one numbered config per instance.
func LoadConfigs(path string) ([]Config, error) {
	configPaths := []string{}
	if info, err := os.Stat(path); err == nil && info.IsDir() && !strings.HasSuffix(path, ".conf.d") {
		if multiConfigs, err := filepath.Glob(filepath.Join(path, "*.conf")); err == nil && len(multiConfigs) > 0 {
			configPaths = append(configPaths, multiConfigs...)
		}
		if multiConfigs, err := filepath.Glob(filepath.Join(path, "*.conf.d")); err == nil {
			configPaths = append(configPaths, multiConfigs...)
		}
	}
	if len(configPaths) == 0 {
		configPaths = append(configPaths, path)
	}
	sort.Strings(configPaths)
	configs := []Config{}
	for _, p := range configPaths {
		config, err := LoadConfig(p)
		if err != nil {
			return nil, err
		}
		configs = append(configs, config)
	}
	return configs, nil
}

// StringConfig returns an in-memory Config, useful for tests.
func StringConfig(data string) (Config, error) {
	file, err := ini.Load(strings.NewReader(data))
	return Config{File: file, Source: "string"}, err
}
