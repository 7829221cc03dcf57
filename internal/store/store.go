package store

// #region imports
import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	tenant_id   TEXT PRIMARY KEY,
	persona     TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id      TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	source_id     TEXT NOT NULL,
	content       TEXT NOT NULL,
	embedding     BLOB NOT NULL,
	metadata_json TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_tenant ON chunks(tenant_id);
CREATE INDEX IF NOT EXISTS idx_chunks_tenant_source ON chunks(tenant_id, source_id);

CREATE TABLE IF NOT EXISTS structured_rows (
	row_id      TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	sheet_name  TEXT NOT NULL,
	row_number  INTEGER NOT NULL,
	fields      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rows_tenant ON structured_rows(tenant_id);
CREATE INDEX IF NOT EXISTS idx_rows_tenant_sheet ON structured_rows(tenant_id, sheet_name);

CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);

CREATE TABLE IF NOT EXISTS decision_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id       TEXT NOT NULL,
	conversation_id TEXT,
	intent          TEXT NOT NULL,
	path            TEXT NOT NULL,
	stage           TEXT,
	reason          TEXT,
	created_at      TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store owns the SQLite database backing chunks, structured rows,
// conversations, and the decision log. Every tenant-owned table carries
// tenant_id and every accessor predicates on it.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for packages that share the database
// (conversation store, decision inspection).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor
