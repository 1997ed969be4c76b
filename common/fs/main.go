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

package fs

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

// LockPath locks a directory with a timeout.
func LockPath(directory string, timeout time.Duration) (*os.File, error) {
	file, err := os.Open(directory)
	if err != nil {
		if os.IsNotExist(err) && os.MkdirAll(directory, 0755) == nil {
			file, err = os.Open(directory)
		}
		if err != nil {
			return nil, fmt.Errorf("Unable to lock %s: %s", directory, err)
		}
	}
	success := make(chan error)
	cancel := make(chan struct{})
	defer close(cancel)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	go func(fd int) {
		select {
		case success <- syscall.Flock(fd, syscall.LOCK_EX):
		case <-cancel:
		}
	}(int(file.Fd()))
	select {
	case err = <-success:
		if err == nil {
			return file, nil
		}
	case <-timer.C:
		err = fmt.Errorf("Flock timed out: %q: %s", directory, timeout)
	}
	file.Close()
	return nil, err
}

// IsMount returns true if the given directory is the root of a mounted
// filesystem, i.e. it lives on a different device than its parent.
func IsMount(dir string) (bool, error) {
	dir = filepath.Clean(dir)
	fileinfo, err := os.Stat(dir)
	if err != nil {
		return false, fmt.Errorf("Unable to stat directory: %s", err)
	}
	parentinfo, err := os.Stat(filepath.Dir(dir))
	if err != nil {
		return false, fmt.Errorf("Unable to stat parent: %s", err)
	}
	return fileinfo.Sys().(*syscall.Stat_t).Dev != parentinfo.Sys().(*syscall.Stat_t).Dev, nil
}

// IsNotDir returns true if the error came from listing a path that is
// missing or isn't actually a directory.
func IsNotDir(err error) bool {
	if se, ok := err.(*os.SyscallError); ok {
		return se.Err == syscall.ENOTDIR || se.Err == syscall.EINVAL
	}
	if pe, ok := err.(*os.PathError); ok {
		return os.IsNotExist(pe) || pe.Err == syscall.ENOTDIR || pe.Err == syscall.EINVAL
	}
	return false
}

// ReadDirNames returns a sorted list of entry names in the directory.
func ReadDirNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	list, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return nil, err
	}
	if len(list) > 1 {
		sort.Strings(list)
	}
	return list, nil
}

func Exists(file string) bool {
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return false
	}
	return true
}

// AtomicFileWriter saves a new file atomically.
type AtomicFileWriter interface {
	// Write writes the data to the underlying file.
	Write([]byte) (int, error)
	// Save atomically moves the file to its destination.
	Save(string) error
	// Abandon removes any resources associated with this file, if it hasn't been saved.
	Abandon() error
}

type atomicFileWriter struct {
	fp    *os.File
	saved bool
}

func (a *atomicFileWriter) Write(data []byte) (int, error) {
	return a.fp.Write(data)
}

func (a *atomicFileWriter) Save(dst string) error {
	if err := a.fp.Sync(); err != nil {
		return err
	}
	if err := a.fp.Close(); err != nil {
		return err
	}
	if err := os.Rename(a.fp.Name(), dst); err != nil {
		return err
	}
	a.saved = true
	return nil
}

func (a *atomicFileWriter) Abandon() error {
	if a.saved {
		return nil
	}
	a.fp.Close()
	return os.RemoveAll(a.fp.Name())
}

// NewAtomicFileWriter returns an AtomicFileWriter writing to a temp file in
// tempDir, which must live on the same filesystem as the final destination.
func NewAtomicFileWriter(tempDir string, dstDir string) (AtomicFileWriter, error) {
	if !Exists(tempDir) {
		if err := os.MkdirAll(tempDir, 0755); err != nil {
			return nil, err
		}
	}
	fp, err := ioutil.TempFile(tempDir, ".atomic")
	if err != nil {
		return nil, err
	}
	if err := fp.Chmod(0644); err != nil {
		fp.Close()
		os.RemoveAll(fp.Name())
		return nil, err
	}
	return &atomicFileWriter{fp: fp}, nil
}
