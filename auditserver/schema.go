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

const (
	syncTableScript = `
		CREATE TABLE outgoing_sync (
			remote_id TEXT UNIQUE,
			sync_point INTEGER,
			updated_at TEXT DEFAULT 0
		);
		CREATE TRIGGER outgoing_sync_insert AFTER INSERT ON outgoing_sync
			BEGIN
				UPDATE outgoing_sync
				SET updated_at = STRFTIME('%s', 'NOW')
				WHERE ROWID = new.ROWID;
			END;
		CREATE TRIGGER outgoing_sync_update AFTER UPDATE ON outgoing_sync
			BEGIN
				UPDATE outgoing_sync
				SET updated_at = STRFTIME('%s', 'NOW')
				WHERE ROWID = new.ROWID;
			END;

		CREATE TABLE incoming_sync (
			remote_id TEXT UNIQUE,
			sync_point INTEGER,
			updated_at TEXT DEFAULT 0
		);
		CREATE TRIGGER incoming_sync_insert AFTER INSERT ON incoming_sync
			BEGIN
				UPDATE incoming_sync
				SET updated_at = STRFTIME('%s', 'NOW')
				WHERE ROWID = new.ROWID;
			END;
		CREATE TRIGGER incoming_sync_update AFTER UPDATE ON incoming_sync
			BEGIN
				UPDATE incoming_sync
				SET updated_at = STRFTIME('%s', 'NOW')
				WHERE ROWID = new.ROWID;
			END;
		`

	accountDBScript = syncTableScript + `
		CREATE TABLE container (
			ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			put_timestamp TEXT,
			delete_timestamp TEXT,
			object_count INTEGER,
			bytes_used INTEGER,
			deleted INTEGER DEFAULT 0,
			storage_policy_index INTEGER DEFAULT 0
		);
		CREATE INDEX ix_container_deleted_name ON container (deleted, name);

		CREATE TABLE account_stat (
			account TEXT,
			created_at TEXT,
			put_timestamp TEXT DEFAULT '0',
			delete_timestamp TEXT DEFAULT '0',
			container_count INTEGER,
			object_count INTEGER DEFAULT 0,
			bytes_used INTEGER DEFAULT 0,
			hash TEXT default '00000000000000000000000000000000',
			id TEXT,
			status TEXT DEFAULT '',
			status_changed_at TEXT DEFAULT '0',
			metadata TEXT DEFAULT ''
		);

		CREATE TRIGGER container_update BEFORE UPDATE ON container
			BEGIN
				SELECT RAISE(FAIL, 'UPDATE not allowed; DELETE and INSERT');
			END;
		CREATE TRIGGER container_insert AFTER INSERT ON container
			BEGIN
				UPDATE account_stat
				SET container_count = container_count + (1 - new.deleted),
					object_count = object_count + new.object_count,
					bytes_used = bytes_used + new.bytes_used,
					hash = chexor(hash, new.name,
								  new.put_timestamp || '-' ||
								  new.delete_timestamp || '-' ||
								  new.object_count || '-' || new.bytes_used);
			END;
		CREATE TRIGGER container_delete AFTER DELETE ON container
			BEGIN
				UPDATE account_stat
				SET container_count = container_count - (1 - old.deleted),
					object_count = object_count - old.object_count,
					bytes_used = bytes_used - old.bytes_used,
					hash = chexor(hash, old.name,
								  old.put_timestamp || '-' ||
								  old.delete_timestamp || '-' ||
								  old.object_count || '-' || old.bytes_used);
			END;
		`

	containerDBScript = syncTableScript + `
		CREATE TABLE object (
			ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			created_at TEXT,
			size INTEGER,
			content_type TEXT,
			etag TEXT,
			deleted INTEGER DEFAULT 0,
			storage_policy_index INTEGER DEFAULT 0
		);
		CREATE INDEX ix_object_deleted_name ON object (deleted, name);

		CREATE TABLE container_stat (
			container TEXT,
			created_at TEXT,
			put_timestamp TEXT DEFAULT '0',
			delete_timestamp TEXT DEFAULT '0',
			object_count INTEGER DEFAULT 0,
			bytes_used INTEGER DEFAULT 0,
			reported_put_timestamp TEXT DEFAULT '0',
			reported_delete_timestamp TEXT DEFAULT '0',
			reported_object_count INTEGER DEFAULT 0,
			reported_bytes_used INTEGER DEFAULT 0,
			hash TEXT default '00000000000000000000000000000000',
			id TEXT,
			status TEXT DEFAULT '',
			status_changed_at TEXT DEFAULT '0',
			storage_policy_index INTEGER DEFAULT 0,
			metadata TEXT DEFAULT ''
		);

		CREATE TRIGGER object_update BEFORE UPDATE ON object
			BEGIN
				SELECT RAISE(FAIL, 'UPDATE not allowed; DELETE and INSERT');
			END;
		CREATE TRIGGER object_insert AFTER INSERT ON object
			BEGIN
				UPDATE container_stat
				SET object_count = object_count + (1 - new.deleted),
					bytes_used = bytes_used + new.size,
					hash = chexor(hash, new.name, new.created_at);
			END;
		CREATE TRIGGER object_delete AFTER DELETE ON object
			BEGIN
				UPDATE container_stat
				SET object_count = object_count - (1 - old.deleted),
					bytes_used = bytes_used - old.size,
					hash = chexor(hash, old.name, old.created_at);
			END;
		`

	pragmaScript = `
		PRAGMA synchronous = NORMAL;
		PRAGMA cache_size = -4096;
		PRAGMA temp_store = MEMORY;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 25000;`
)
