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

// DBInfo is the metadata and stats record kept in a replica database.
type DBInfo struct {
	Name            string
	CreatedAt       string
	PutTimestamp    string
	DeleteTimestamp string
	StatusChangedAt string
	ContainerCount  int64
	ObjectCount     int64
	BytesUsed       int64
	Hash            string
	ID              string
	RawMetadata     string
	Metadata        map[string][]string
}

// ReplicaDB is what the auditor needs out of one on-disk database.
type ReplicaDB interface {
	// GetInfo returns the database's current stat record.
	GetInfo() (*DBInfo, error)
	// IsDeleted returns true if the database has been deleted.
	IsDeleted() (bool, error)
	// Close frees any resources associated with the database.
	Close() error
}

// Kind describes one family of replica databases that can be audited.
type Kind struct {
	// Name is the singular name of the kind, e.g. "account".
	Name string
	// DataDir is the directory under each device where these databases live.
	DataDir string

	statTable         string
	nameColumn        string
	infoQuery         string
	schema            string
	hasContainerCount bool
}

// AccountKind audits account databases found under <device>/accounts.
var AccountKind = Kind{
	Name:       "account",
	DataDir:    "accounts",
	statTable:  "account_stat",
	nameColumn: "account",
	infoQuery: `SELECT account, created_at, put_timestamp, delete_timestamp,
					status_changed_at, container_count, object_count,
					bytes_used, hash, id, metadata FROM account_stat`,
	schema:            accountDBScript,
	hasContainerCount: true,
}

// ContainerKind audits container databases found under <device>/containers.
var ContainerKind = Kind{
	Name:       "container",
	DataDir:    "containers",
	statTable:  "container_stat",
	nameColumn: "container",
	infoQuery: `SELECT container, created_at, put_timestamp, delete_timestamp,
					status_changed_at, object_count, bytes_used, hash, id,
					metadata FROM container_stat`,
	schema:            containerDBScript,
	hasContainerCount: false,
}

// Open opens the database at dbFile for auditing.
func (k Kind) Open(dbFile string) (ReplicaDB, error) {
	return sqliteOpenReplicaDB(k, dbFile)
}
