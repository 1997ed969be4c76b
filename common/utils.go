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

package common

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const Version = "0.2.1"

// UUID returns a random uuid-looking string.
func UUID() string {
	return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x", rand.Int63n(0xffffffff), rand.Int63n(0xffff),
		rand.Int63n(0xffff), rand.Int63n(0xffff), rand.Int63n(0xffffffffffff))
}

// CanonicalTimestamp formats a float timestamp the way the rest of the cluster expects it.
func CanonicalTimestamp(t float64) string {
	return fmt.Sprintf("%016.5f", t)
}

func CanonicalTimestampFromTime(t time.Time) string {
	return CanonicalTimestamp(float64(t.UnixNano()) / 1000000000.0)
}

func GetTimestamp() string {
	return CanonicalTimestampFromTime(time.Now())
}

// IsCorruptDBError returns true if the error is sqlite telling us the database file is toast.
func IsCorruptDBError(err error) bool {
	if err == nil {
		return false
	}
	a := err.Error()
	for _, b := range []string{
		"database disk image is malformed",
		"file is encrypted or is not a database",
		"file is not a database",
	} {
		if strings.Contains(a, b) {
			return true
		}
	}
	return false
}
