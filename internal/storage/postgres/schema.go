// Package postgres provides the PostgreSQL implementation of storage.KVStore.
package postgres

// Schema contains the SQL statements to create the record table.
// seq preserves insertion order within a collection.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    seq BIGSERIAL PRIMARY KEY,
    collection TEXT NOT NULL,
    key TEXT NOT NULL,
    value BYTEA NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (collection, key)
);

CREATE INDEX IF NOT EXISTS idx_records_collection_seq ON records(collection, seq);
`
