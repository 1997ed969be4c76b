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
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sunbird-storage/sunbird/common"
	"github.com/sunbird-storage/sunbird/common/fs"
)

const (
	maxOpenConns = 2
	maxIdleConns = 2
)

// ErrorNoSuchDatabase is returned when the database file doesn't exist.
var ErrorNoSuchDatabase = errors.New("No such database.")

func chexor(old, name, timestamp string) string {
	oldDigest, err := hex.DecodeString(old)
	if err != nil {
		panic(fmt.Sprintf("Error decoding hex: %v", err))
	}
	h := md5.New()
	if _, err := io.WriteString(h, name+"-"+timestamp); err != nil {
		panic("THIS SHOULD NEVER HAPPEN")
	}
	digest := h.Sum(nil)
	for i := range digest {
		digest[i] ^= oldDigest[i]
	}
	return hex.EncodeToString(digest)
}

func init() {
	// register our sql driver with user-defined chexor function
	sql.Register("sqlite3_audit",
		&sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if err := conn.RegisterFunc("chexor", chexor, true); err != nil {
					return err
				}
				if _, err := conn.Exec(pragmaScript, nil); err != nil {
					return err
				}
				return nil
			},
		},
	)
}

type sqliteReplicaDB struct {
	connectLock sync.Mutex
	*sql.DB
	kind   Kind
	dbFile string
}

var _ ReplicaDB = &sqliteReplicaDB{}

func (db *sqliteReplicaDB) connect() error {
	db.connectLock.Lock()
	defer db.connectLock.Unlock()
	if db.DB != nil {
		return nil
	}
	dbConn, err := sql.Open("sqlite3_audit", "file:"+db.dbFile+"?psow=1&_txlock=immediate&mode=rw")
	if err != nil {
		return fmt.Errorf("Failed to open: %v", err)
	}
	dbConn.SetMaxOpenConns(maxOpenConns)
	dbConn.SetMaxIdleConns(maxIdleConns)
	db.DB = dbConn
	return nil
}

// GetInfo returns the database's information as a DBInfo struct.
func (db *sqliteReplicaDB) GetInfo() (*DBInfo, error) {
	if err := db.connect(); err != nil {
		return nil, err
	}
	info := &DBInfo{}
	row := db.QueryRow(db.kind.infoQuery)
	var err error
	if db.kind.hasContainerCount {
		err = row.Scan(&info.Name, &info.CreatedAt, &info.PutTimestamp,
			&info.DeleteTimestamp, &info.StatusChangedAt,
			&info.ContainerCount, &info.ObjectCount, &info.BytesUsed,
			&info.Hash, &info.ID, &info.RawMetadata)
	} else {
		err = row.Scan(&info.Name, &info.CreatedAt, &info.PutTimestamp,
			&info.DeleteTimestamp, &info.StatusChangedAt,
			&info.ObjectCount, &info.BytesUsed,
			&info.Hash, &info.ID, &info.RawMetadata)
	}
	if err != nil {
		if common.IsCorruptDBError(err) {
			return nil, fmt.Errorf("Corrupted database %s: %v", db.dbFile, err)
		}
		return nil, err
	}
	if info.RawMetadata == "" {
		info.Metadata = make(map[string][]string)
	} else if err := json.Unmarshal([]byte(info.RawMetadata), &info.Metadata); err != nil {
		return nil, err
	}
	return info, nil
}

// IsDeleted returns true if the database is deleted - if its delete timestamp is later than its put timestamp.
func (db *sqliteReplicaDB) IsDeleted() (bool, error) {
	info, err := db.GetInfo()
	if err != nil {
		return false, err
	}
	return info.DeleteTimestamp > info.PutTimestamp, nil
}

// Close releases all resources associated with the database.
func (db *sqliteReplicaDB) Close() error {
	db.connectLock.Lock()
	defer db.connectLock.Unlock()
	if db.DB != nil {
		err := db.DB.Close()
		db.DB = nil
		return err
	}
	return nil
}

func sqliteOpenReplicaDB(kind Kind, dbFile string) (ReplicaDB, error) {
	if !fs.Exists(dbFile) {
		return nil, ErrorNoSuchDatabase
	}
	return &sqliteReplicaDB{kind: kind, dbFile: dbFile}, nil
}

// CreateDatabase creates a new database of the given kind at dbFile, if one
// doesn't already exist.
func CreateDatabase(kind Kind, dbFile string, name string, putTimestamp string, metadata map[string][]string) error {
	var serializedMetadata []byte
	var err error

	hashDir := filepath.Dir(dbFile)
	if err := os.MkdirAll(hashDir, 0755); err != nil {
		return err
	}
	lock, err := fs.LockPath(filepath.Dir(hashDir), 10*time.Second)
	if err != nil {
		return err
	}
	defer lock.Close()

	if fs.Exists(dbFile) {
		return nil
	}

	if metadata == nil {
		serializedMetadata = []byte("{}")
	} else if serializedMetadata, err = json.Marshal(metadata); err != nil {
		return err
	}

	tfp, err := ioutil.TempFile(hashDir, ".newdb")
	if err != nil {
		return err
	}
	if err := tfp.Chmod(0644); err != nil {
		return err
	}
	defer tfp.Close()
	tempFile := tfp.Name()
	dbConn, err := sql.Open("sqlite3_audit", "file:"+tempFile+"?psow=1&_txlock=immediate&mode=rwc")
	if err != nil {
		return err
	}
	defer dbConn.Close()
	tx, err := dbConn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(kind.schema); err != nil {
		return err
	}
	initQuery := fmt.Sprintf(`INSERT INTO %s (%s, created_at, id, put_timestamp,
							  status_changed_at, metadata) VALUES (?, ?, ?, ?, ?, ?)`,
		kind.statTable, kind.nameColumn)
	if kind.hasContainerCount {
		initQuery = fmt.Sprintf(`INSERT INTO %s (%s, created_at, id, put_timestamp,
								 status_changed_at, metadata, container_count) VALUES (?, ?, ?, ?, ?, ?, 0)`,
			kind.statTable, kind.nameColumn)
	}
	if _, err := tx.Exec(initQuery, name, common.GetTimestamp(), common.UUID(),
		putTimestamp, putTimestamp, string(serializedMetadata)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	// closing the conn checkpoints the WAL into the main file; the rename
	// only moves the main file
	if err := dbConn.Close(); err != nil {
		return err
	}
	return os.Rename(tempFile, dbFile)
}
