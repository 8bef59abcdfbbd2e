// Package history persists a searchable log of finished transcriptions in
// a local SQLite database.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	duration_ms INTEGER,
	model_id TEXT,
	audio_path TEXT,
	output_mode TEXT,
	audio_size_bytes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at DESC);
`

// Record is one finished transcription, as persisted and as returned by
// List/Search/Get.
type Record struct {
	ID             int64
	Text           string
	CreatedAt      time.Time
	DurationMS     int64
	ModelID        string
	AudioPath      string
	OutputMode     string
	AudioSizeBytes int64
}

// Store is a handle to the history database. It is safe for concurrent use;
// database/sql pools its own connections.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and ensures
// its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history db %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists one finished transcription and returns its assigned id.
func (s *Store) Insert(r Record) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO transcriptions (text, created_at, duration_ms, model_id, audio_path, output_mode, audio_size_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Text, createdAt.Unix(), r.DurationMS, r.ModelID, r.AudioPath, r.OutputMode, r.AudioSizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("insert history record: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent records, newest first.
func (s *Store) List(limit, offset int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, text, created_at, duration_ms, model_id, audio_path, output_mode, audio_size_bytes
		 FROM transcriptions ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Search returns records whose text contains query (case-insensitive),
// newest first.
func (s *Store) Search(query string, limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, text, created_at, duration_ms, model_id, audio_path, output_mode, audio_size_bytes
		 FROM transcriptions WHERE text LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT ?`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Get returns a single record by id.
func (s *Store) Get(id int64) (Record, error) {
	row := s.db.QueryRow(
		`SELECT id, text, created_at, duration_ms, model_id, audio_path, output_mode, audio_size_bytes
		 FROM transcriptions WHERE id = ?`,
		id,
	)
	return scanRecord(row)
}

// Delete removes a record by id.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM transcriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history record %d: %w", id, err)
	}
	return nil
}

// Count returns the total number of persisted records.
func (s *Store) Count() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transcriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r         Record
		createdAt int64
		durationMS,
		audioSize sql.NullInt64
		modelID, audioPath, outputMode sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Text, &createdAt, &durationMS, &modelID, &audioPath, &outputMode, &audioSize); err != nil {
		return Record{}, fmt.Errorf("scan history record: %w", err)
	}
	r.CreatedAt = time.Unix(createdAt, 0)
	r.DurationMS = durationMS.Int64
	r.ModelID = modelID.String
	r.AudioPath = audioPath.String
	r.OutputMode = outputMode.String
	r.AudioSizeBytes = audioSize.Int64
	return r, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}

// escapeLike escapes SQL LIKE wildcard characters in a user-supplied query.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
