// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"matrixhub/internal/device"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an entity the host has never registered
var ErrNotFound = errors.New("entity not registered")

// Record is what the host remembers about one entity
type Record struct {
	UniqueID  string    `json:"unique_id"`
	DeviceID  string    `json:"device_id"`
	Domain    string    `json:"domain"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Source    *string   `json:"source"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Registry records every entity the host has registered in a SQLite file
type Registry struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the registry database at path
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	registry := &Registry{db: db, now: time.Now}
	if err := registry.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return registry, nil
}

// Close closes the database connection
func (r *Registry) Close() error {
	return r.db.Close()
}

func (r *Registry) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			unique_id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			domain TEXT NOT NULL,
			name TEXT NOT NULL,
			state TEXT NOT NULL,
			source TEXT,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_device_id ON entities(device_id)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Upsert records the current snapshot of an entity. first_seen is kept from the first call.
func (r *Registry) Upsert(snapshot device.EntitySnapshot) error {
	now := r.now().UTC()

	var source sql.NullString
	if snapshot.Source != nil {
		source = sql.NullString{String: *snapshot.Source, Valid: true}
	}

	query := `INSERT INTO entities (unique_id, device_id, domain, name, state, source, first_seen, last_seen)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(unique_id) DO UPDATE SET
				device_id = excluded.device_id,
				domain = excluded.domain,
				name = excluded.name,
				state = excluded.state,
				source = excluded.source,
				last_seen = excluded.last_seen`

	_, err := r.db.Exec(query, snapshot.UniqueID, snapshot.DeviceID, snapshot.Domain, snapshot.Name,
		snapshot.State, source, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", snapshot.UniqueID, err)
	}

	return nil
}

// Get returns the record for one entity
func (r *Registry) Get(uniqueID string) (*Record, error) {
	query := `SELECT unique_id, device_id, domain, name, state, source, first_seen, last_seen
			  FROM entities WHERE unique_id = ?`

	record, err := scanRecord(r.db.QueryRow(query, uniqueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return record, nil
}

// List returns every record, optionally limited to one device
func (r *Registry) List(deviceID string) ([]Record, error) {
	query := `SELECT unique_id, device_id, domain, name, state, source, first_seen, last_seen
			  FROM entities`
	var args []interface{}
	if deviceID != "" {
		query += ` WHERE device_id = ?`
		args = append(args, deviceID)
	}
	query += ` ORDER BY device_id, unique_id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		records = append(records, *record)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var record Record
	var source sql.NullString
	err := row.Scan(&record.UniqueID, &record.DeviceID, &record.Domain, &record.Name,
		&record.State, &source, &record.FirstSeen, &record.LastSeen)
	if err != nil {
		return nil, err
	}
	if source.Valid {
		record.Source = &source.String
	}
	return &record, nil
}
