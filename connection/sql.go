package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ProtonMail/gopenpgp/v2/helper"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS connections (
	user_id       TEXT PRIMARY KEY,
	provider_id   TEXT NOT NULL,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL
)`

// SQLStore keeps connections in a SQL database.
// When built with a passphrase, tokens are stored encrypted with it.
type SQLStore struct {
	db         *sqlx.DB
	passphrase []byte
}

// OpenSQLStore opens the database with the given driver ("sqlite3" or "postgres") and creates
// the connections table if needed.
func OpenSQLStore(driverName, dsn string, passphrase []byte) (*SQLStore, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %v db: %w", driverName, err)
	}

	store, err := NewSQLStore(db, passphrase)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func NewSQLStore(db *sqlx.DB, passphrase []byte) (*SQLStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating connections table: %w", err)
	}

	return &SQLStore{db: db, passphrase: passphrase}, nil
}

func (s *SQLStore) FindConnection(ctx context.Context, userID string) (Connection, bool, error) {
	var conn Connection

	if err := s.db.GetContext(ctx, &conn, s.db.Rebind(
		`SELECT user_id, provider_id, access_token, refresh_token FROM connections WHERE user_id = ?`,
	), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Connection{}, false, nil
		}

		return Connection{}, false, fmt.Errorf("reading connection: %w", err)
	}

	accessToken, err := s.decrypt(conn.AccessToken)
	if err != nil {
		return Connection{}, false, err
	}

	refreshToken, err := s.decrypt(conn.RefreshToken)
	if err != nil {
		return Connection{}, false, err
	}

	conn.AccessToken, conn.RefreshToken = accessToken, refreshToken

	return conn, true, nil
}

func (s *SQLStore) SaveConnection(ctx context.Context, conn Connection) error {
	accessToken, err := s.encrypt(conn.AccessToken)
	if err != nil {
		return err
	}

	refreshToken, err := s.encrypt(conn.RefreshToken)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO connections (user_id, provider_id, access_token, refresh_token)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			provider_id = excluded.provider_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token`,
	), conn.UserID, conn.ProviderID, accessToken, refreshToken); err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}

	return nil
}

func (s *SQLStore) DeleteConnection(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM connections WHERE user_id = ?`), userID); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}

	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// encrypt armors the token with the store passphrase. Empty tokens stay empty so that an
// unusable connection remains recognisable.
func (s *SQLStore) encrypt(token string) (string, error) {
	if len(s.passphrase) == 0 || token == "" {
		return token, nil
	}

	armored, err := helper.EncryptMessageWithPassword(s.passphrase, token)
	if err != nil {
		return "", fmt.Errorf("encrypting token: %w", err)
	}

	return armored, nil
}

func (s *SQLStore) decrypt(token string) (string, error) {
	if len(s.passphrase) == 0 || token == "" {
		return token, nil
	}

	plain, err := helper.DecryptMessageWithPassword(s.passphrase, token)
	if err != nil {
		return "", fmt.Errorf("decrypting token: %w", err)
	}

	return plain, nil
}
