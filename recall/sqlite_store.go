package recall

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/initializ/hmm/storageerr"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	summary_id TEXT,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_messages_role ON messages (role);
`

// SQLiteStore is a SQLite-backed Store. Writes are serialized through a
// mutex on top of the driver's own locking so Append/Recent/All/Search can
// be called concurrently from multiple readers while a single writer
// appends.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures the messages table and indexes exist.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening recall database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating recall schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(role, content string, metadata map[string]any) (int64, error) {
	var metaJSON []byte
	if len(metadata) > 0 {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO messages (role, content, metadata) VALUES (?, ?, ?)`,
		role, content, string(metaJSON),
	)
	if err != nil {
		return 0, storageerr.Wrap("recall.Append", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storageerr.Wrap("recall.Append", err)
	}
	return id, nil
}

func (s *SQLiteStore) Recent(n int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp, summary_id, metadata
		 FROM messages ORDER BY timestamp DESC, id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, storageerr.Wrap("recall.Recent", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, storageerr.Wrap("recall.Recent", err)
	}
	reverseMessages(msgs)
	return msgs, nil
}

func (s *SQLiteStore) All() ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp, summary_id, metadata
		 FROM messages ORDER BY timestamp ASC, id ASC`,
	)
	if err != nil {
		return nil, storageerr.Wrap("recall.All", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, storageerr.Wrap("recall.All", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) Search(query string, limit, offset int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, role, content, timestamp, summary_id, metadata
		 FROM messages WHERE content LIKE ?
		 ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`,
		"%"+query+"%", limit, offset,
	)
	if err != nil {
		return nil, storageerr.Wrap("recall.Search", err)
	}
	defer rows.Close()
	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, storageerr.Wrap("recall.Search", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) Delete(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, storageerr.Wrap("recall.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageerr.Wrap("recall.Delete", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		return storageerr.Wrap("recall.Clear", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var (
			m         Message
			summaryID sql.NullString
			metaJSON  sql.NullString
			ts        time.Time
		)
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &ts, &summaryID, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.Timestamp = ts
		m.SummaryID = summaryID.String
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling metadata: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func reverseMessages(msgs []Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
