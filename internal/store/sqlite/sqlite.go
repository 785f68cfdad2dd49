package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/roomchat/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	created_by TEXT NOT NULL DEFAULT '',
	locked     BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_allowed_users (
	room_id  INTEGER NOT NULL,
	username TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (room_id, username),
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_room_allowed_users_room ON room_allowed_users(room_id, position);
CREATE INDEX IF NOT EXISTS idx_users_session ON users(session_id);
`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, nil)
}

// NewWithSetup creates a new SQLite store, applies the schema and then runs setup.
// Useful for tests to seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection serializes transactions; UpdateRoom relies on it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest)
		VALUES (?, ?, 0)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest user with session ID.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, username, sessionID string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, is_guest, session_id)
		VALUES (?, '', 1, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert guest user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE username = ?
	`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// GetGuestBySessionID retrieves the guest user created for a guest session.
func (s *SQLiteStore) GetGuestBySessionID(ctx context.Context, sessionID string) (*store.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	query := `
		SELECT id, username, password_hash, is_guest, COALESCE(session_id, ''), created_at
		FROM users
		WHERE session_id = ? AND is_guest = 1
	`
	return scanUser(s.db.QueryRowContext(ctx, query, sessionID))
}

// UpdatePasswordHash replaces the password hash of a registered user.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ? AND is_guest = 0`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return nil
}

func scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsGuest,
		&user.SessionID,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates an unlocked room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name, creator string) (*store.Room, error) {
	query := `
		INSERT INTO rooms (name, created_by)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, name, creator); err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrRoomExists
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.GetRoom(ctx, name)
}

// GetRoom retrieves a room by name together with its allowlist.
func (s *SQLiteStore) GetRoom(ctx context.Context, name string) (*store.Room, error) {
	return getRoom(ctx, s.db, name)
}

func getRoom(ctx context.Context, q querier, name string) (*store.Room, error) {
	query := `
		SELECT id, name, created_by, locked, created_at
		FROM rooms
		WHERE name = ?
	`
	var room store.Room
	err := q.QueryRowContext(ctx, query, name).Scan(
		&room.ID,
		&room.Name,
		&room.CreatedBy,
		&room.Locked,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %q: %w", name, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	allowed, err := listAllowed(ctx, q, room.ID)
	if err != nil {
		return nil, err
	}
	room.AllowedUsers = allowed

	return &room, nil
}

func listAllowed(ctx context.Context, q querier, roomID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT username
		FROM room_allowed_users
		WHERE room_id = ?
		ORDER BY position ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("query allowlist: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan allowlist: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteRoom removes a room and its allowlist. Absent rooms are ignored.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM room_allowed_users
			WHERE room_id IN (SELECT id FROM rooms WHERE name = ?)
		`, name); err != nil {
			return fmt.Errorf("delete allowlist: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
}

// PersistAllowlist replaces the room's allowlist.
func (s *SQLiteStore) PersistAllowlist(ctx context.Context, name string, users []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, name)
		if err != nil {
			return err
		}
		return writeAllowlist(ctx, tx, room.ID, users)
	})
}

// SetLocked sets the room's lock flag.
func (s *SQLiteStore) SetLocked(ctx context.Context, name string, locked bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE rooms SET locked = ? WHERE name = ?`, locked, name)
	if err != nil {
		return fmt.Errorf("update room lock: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("room %q: %w", name, store.ErrNotFound)
	}
	return nil
}

// UpdateRoom re-reads the room and applies fn in one transaction.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, name string, fn func(*store.Room) error) (*store.Room, error) {
	var updated *store.Room
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE rooms SET locked = ? WHERE id = ?`, room.Locked, room.ID); err != nil {
			return fmt.Errorf("update room lock: %w", err)
		}
		if err := writeAllowlist(ctx, tx, room.ID, room.AllowedUsers); err != nil {
			return err
		}
		updated = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func writeAllowlist(ctx context.Context, tx *sql.Tx, roomID int64, users []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM room_allowed_users WHERE room_id = ?`, roomID); err != nil {
		return fmt.Errorf("clear allowlist: %w", err)
	}
	for i, u := range users {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO room_allowed_users (room_id, username, position)
			VALUES (?, ?, ?)
		`, roomID, u, i); err != nil {
			return fmt.Errorf("insert allowlist entry: %w", err)
		}
	}
	return nil
}

// ListRooms lists all rooms, newest first.
func (s *SQLiteStore) ListRooms(ctx context.Context) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_by, locked, created_at
		FROM rooms
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedBy, &room.Locked, &room.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the single connection before loading allowlists.
	rows.Close()

	for _, room := range rooms {
		allowed, err := listAllowed(ctx, s.db, room.ID)
		if err != nil {
			return nil, err
		}
		room.AllowedUsers = allowed
	}
	return rooms, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var _ store.Store = (*SQLiteStore)(nil)
