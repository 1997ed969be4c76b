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

package auditserver

import (
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sunbird-storage/sunbird/common/fs"
	"github.com/sunbird-storage/sunbird/common/srv"
)

// AuditLocation identifies one database found on disk.
type AuditLocation struct {
	Path      string
	Device    string
	Partition string
}

// locationGenerator lazily walks the device tree, sending every database it
// finds to a results channel. A bad directory anywhere below the device root
// is logged and skipped; only an unlistable device root fails the walk.
type locationGenerator struct {
	deviceRoot  string
	dataDir     string
	checkMounts bool
	logger      srv.LowLevelLogger

	errorCount int64
	mountSkips int64
}

func isPartitionName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHexName(name string, length int) bool {
	if len(name) != length {
		return false
	}
	for _, c := range name {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func (g *locationGenerator) badDir(what, dir string, err error) {
	atomic.AddInt64(&g.errorCount, 1)
	g.logger.Error("Error listing directory",
		zap.String("what", what),
		zap.String("dir", dir),
		zap.Error(err))
}

// walkDevice sends every database on one device to results. Returns false if
// the walk was canceled.
func (g *locationGenerator) walkDevice(device string, results chan<- AuditLocation, cancel <-chan struct{}) bool {
	devicePath := filepath.Join(g.deviceRoot, device)
	if g.checkMounts {
		if mounted, err := fs.IsMount(devicePath); err != nil || !mounted {
			g.logger.Info("Skipping unmounted device",
				zap.String("devicePath", devicePath), zap.Error(err))
			atomic.AddInt64(&g.mountSkips, 1)
			return true
		}
	}
	dataPath := filepath.Join(devicePath, g.dataDir)
	partitions, err := fs.ReadDirNames(dataPath)
	if err != nil {
		// stray files where directories belong aren't errors, just skipped
		if !fs.IsNotDir(err) {
			g.badDir("data dir", dataPath, err)
		}
		return true
	}
	for _, partition := range partitions {
		partitionPath := filepath.Join(dataPath, partition)
		if !isPartitionName(partition) {
			continue
		}
		suffixes, err := fs.ReadDirNames(partitionPath)
		if err != nil {
			if !fs.IsNotDir(err) {
				g.badDir("partition", partitionPath, err)
			}
			continue
		}
		for _, suffix := range suffixes {
			if !isHexName(suffix, 3) {
				continue
			}
			suffixPath := filepath.Join(partitionPath, suffix)
			hashes, err := fs.ReadDirNames(suffixPath)
			if err != nil {
				if !fs.IsNotDir(err) {
					g.badDir("suffix", suffixPath, err)
				}
				continue
			}
			for _, hash := range hashes {
				if !isHexName(hash, 32) {
					continue
				}
				dbFile := filepath.Join(suffixPath, hash, hash+".db")
				if !fs.Exists(dbFile) {
					continue
				}
				select {
				case results <- AuditLocation{Path: dbFile, Device: device, Partition: partition}:
				case <-cancel:
					return false
				}
			}
		}
	}
	return true
}

// run walks every device under the device root, closing results when done.
// It returns an error only if the device root itself can't be listed.
func (g *locationGenerator) run(results chan<- AuditLocation, cancel <-chan struct{}) error {
	defer close(results)
	devices, err := fs.ReadDirNames(g.deviceRoot)
	if err != nil {
		return err
	}
	for _, device := range devices {
		if !g.walkDevice(device, results, cancel) {
			return nil
		}
	}
	return nil
}
