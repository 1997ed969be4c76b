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
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetInfoAccount(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	dbFile := filepath.Join(dir, "hash", "db.db")
	require.Nil(t, CreateDatabase(AccountKind, dbFile, "AUTH_test", "0000000100.00000",
		map[string][]string{"X-Account-Meta-Color": {"blue", "0000000100.00000"}}))
	db, err := AccountKind.Open(dbFile)
	require.Nil(t, err)
	defer db.Close()
	info, err := db.GetInfo()
	require.Nil(t, err)
	assert.Equal(t, "AUTH_test", info.Name)
	assert.Equal(t, "0000000100.00000", info.PutTimestamp)
	assert.Equal(t, int64(0), info.ContainerCount)
	assert.Equal(t, int64(0), info.ObjectCount)
	require.NotNil(t, info.Metadata)
	assert.Equal(t, []string{"blue", "0000000100.00000"}, info.Metadata["X-Account-Meta-Color"])
}

func TestCreateAndGetInfoContainer(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	dbFile := filepath.Join(dir, "hash", "db.db")
	require.Nil(t, CreateDatabase(ContainerKind, dbFile, "documents", "0000000100.00000", nil))
	db, err := ContainerKind.Open(dbFile)
	require.Nil(t, err)
	defer db.Close()
	info, err := db.GetInfo()
	require.Nil(t, err)
	assert.Equal(t, "documents", info.Name)
	assert.Equal(t, int64(0), info.ObjectCount)
	assert.Equal(t, int64(0), info.BytesUsed)
	assert.NotEqual(t, "", info.ID)
}

func TestIsDeleted(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	loc := createTestDatabase(t, dir, "sda", "1", "fffffffffffffffffffffffffffffabc", "AUTH_test")
	db, err := AccountKind.Open(loc.Path)
	require.Nil(t, err)
	deleted, err := db.IsDeleted()
	require.Nil(t, err)
	assert.False(t, deleted)
	db.Close()

	markDeleted(t, loc)
	db, err = AccountKind.Open(loc.Path)
	require.Nil(t, err)
	defer db.Close()
	deleted, err = db.IsDeleted()
	require.Nil(t, err)
	assert.True(t, deleted)
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := AccountKind.Open("/nonexistent/db.db")
	require.Equal(t, ErrorNoSuchDatabase, err)
}

func TestGetInfoCorruptDatabase(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	dbFile := filepath.Join(dir, "db.db")
	require.Nil(t, ioutil.WriteFile(dbFile, []byte("not actually a database"), 0644))
	db, err := AccountKind.Open(dbFile)
	require.Nil(t, err)
	defer db.Close()
	_, err = db.GetInfo()
	require.NotNil(t, err)
}

func TestCreateDatabaseIdempotent(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	dbFile := filepath.Join(dir, "hash", "db.db")
	require.Nil(t, CreateDatabase(AccountKind, dbFile, "AUTH_test", "0000000100.00000", nil))
	// creating again is a no-op, not an error
	require.Nil(t, CreateDatabase(AccountKind, dbFile, "AUTH_other", "0000000200.00000", nil))
	db, err := AccountKind.Open(dbFile)
	require.Nil(t, err)
	defer db.Close()
	info, err := db.GetInfo()
	require.Nil(t, err)
	assert.Equal(t, "AUTH_test", info.Name)
}

func TestCreateDatabaseLeavesSingleFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	dbFile := filepath.Join(dir, "hash", "db.db")
	require.Nil(t, CreateDatabase(AccountKind, dbFile, "AUTH_test", "0000000100.00000", nil))
	// the schema and initial row have to land in the renamed file itself,
	// not hang back in a journal next to the discarded temp file
	names, err := ioutil.ReadDir(filepath.Dir(dbFile))
	require.Nil(t, err)
	require.Equal(t, 1, len(names))
	assert.Equal(t, "db.db", names[0].Name())
	assert.True(t, names[0].Size() > 4096)
	db, err := AccountKind.Open(dbFile)
	require.Nil(t, err)
	defer db.Close()
	info, err := db.GetInfo()
	require.Nil(t, err)
	assert.Equal(t, "AUTH_test", info.Name)
}

func TestChexor(t *testing.T) {
	h := chexor("00000000000000000000000000000000", "a", "0000000001.00000")
	assert.Equal(t, 32, len(h))
	// chexor is its own inverse
	assert.Equal(t, "00000000000000000000000000000000",
		chexor(h, "a", "0000000001.00000"))
}
