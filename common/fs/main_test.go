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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPath(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	lock, err := LockPath(dir, time.Second)
	require.Nil(t, err)
	require.NotNil(t, lock)
	lock.Close()
}

func TestLockPathCreatesDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	lock, err := LockPath(filepath.Join(dir, "sub", "dir"), time.Second)
	require.Nil(t, err)
	lock.Close()
	assert.True(t, Exists(filepath.Join(dir, "sub", "dir")))
}

func TestIsMount(t *testing.T) {
	isMount, err := IsMount("/")
	require.Nil(t, err)
	assert.True(t, isMount)
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	isMount, err = IsMount(dir)
	require.Nil(t, err)
	assert.False(t, isMount)
	_, err = IsMount(filepath.Join(dir, "nonexistent"))
	require.NotNil(t, err)
}

func TestReadDirNamesSorted(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	for _, name := range []string{"zz", "aa", "mm"} {
		require.Nil(t, ioutil.WriteFile(filepath.Join(dir, name), []byte{}, 0644))
	}
	names, err := ReadDirNames(dir)
	require.Nil(t, err)
	assert.Equal(t, []string{"aa", "mm", "zz"}, names)
}

func TestIsNotDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "file")
	require.Nil(t, ioutil.WriteFile(file, []byte("x"), 0644))
	_, err = ReadDirNames(file)
	require.NotNil(t, err)
	assert.True(t, IsNotDir(err))
	_, err = ReadDirNames(filepath.Join(dir, "nonexistent"))
	require.NotNil(t, err)
	assert.True(t, IsNotDir(err))
	assert.False(t, IsNotDir(os.ErrPermission))
}

func TestExists(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	assert.True(t, Exists(dir))
	assert.False(t, Exists(filepath.Join(dir, "nope")))
}

func TestAtomicFileWriter(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	w, err := NewAtomicFileWriter(dir, dir)
	require.Nil(t, err)
	defer w.Abandon()
	_, err = w.Write([]byte("hello"))
	require.Nil(t, err)
	dst := filepath.Join(dir, "final")
	require.Nil(t, w.Save(dst))
	contents, err := ioutil.ReadFile(dst)
	require.Nil(t, err)
	assert.Equal(t, "hello", string(contents))
}

func TestAtomicFileWriterAbandon(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	w, err := NewAtomicFileWriter(dir, dir)
	require.Nil(t, err)
	_, err = w.Write([]byte("hello"))
	require.Nil(t, err)
	require.Nil(t, w.Abandon())
	names, err := ReadDirNames(dir)
	require.Nil(t, err)
	assert.Equal(t, 0, len(names))
}
