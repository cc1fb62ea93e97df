package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	werr "github.com/ggonzalez94/walletd/internal/errors"
)

const lockTimeout = 5 * time.Second

// SQLiteStore persists wallet records in a local sqlite database. A file
// lock serializes writers across processes; sqlite itself covers readers.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
}

// OpenSQLite opens (creating if needed) the wallet database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create wallet db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open wallet db: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS wallets (
		session_id TEXT PRIMARY KEY,
		address    TEXT NOT NULL,
		ciphertext BLOB NOT NULL,
		nonce      BLOB NOT NULL,
		tag        BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create wallets table: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutIfAbsent(ctx context.Context, sessionID string, rec Record) (Record, bool, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.lock.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		return Record{}, false, fmt.Errorf("acquire wallet db lock: %w", err)
	}
	if !locked {
		return Record{}, false, werr.New(werr.CodeInternal, "wallet db is locked by another process")
	}
	defer s.lock.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (session_id, address, ciphertext, nonce, tag, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, rec.Address, rec.Key.Ciphertext, rec.Key.Nonce, rec.Key.Tag, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return Record{}, false, fmt.Errorf("insert wallet: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return Record{}, false, fmt.Errorf("insert wallet: %w", err)
	}

	// Read back the row that owns the session, whether it was ours or a
	// concurrent creator's.
	winner, ok, err := s.Get(ctx, sessionID)
	if err != nil {
		return Record{}, false, err
	}
	if !ok {
		return Record{}, false, werr.New(werr.CodeInternal, "wallet vanished after insert")
	}
	return winner, inserted == 1, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (Record, bool, error) {
	var (
		rec       Record
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT address, ciphertext, nonce, tag, created_at
		FROM wallets WHERE session_id = ?`, sessionID,
	).Scan(&rec.Address, &rec.Key.Ciphertext, &rec.Key.Nonce, &rec.Key.Tag, &createdAt)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query wallet: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return rec, true, nil
}
