package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrTokenNotFound = errors.New("api token not found")

type APIToken struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// SaveAPIToken stores the hash of a freshly generated token under a
// unique name. The plaintext token is never persisted.
func (c *Client) SaveAPIToken(name, tokenHash string) (int64, error) {
	res, err := c.db.Exec(
		`INSERT INTO api_tokens (name, token_hash) VALUES (?, ?)`,
		name, tokenHash)
	if err != nil {
		return 0, fmt.Errorf("failed to save token: %w", err)
	}
	return res.LastInsertId()
}

// LookupAPIToken resolves a token hash to its name if the token exists
// and is not revoked.
func (c *Client) LookupAPIToken(tokenHash string) (string, error) {
	var name string
	err := c.db.QueryRow(
		`SELECT name FROM api_tokens WHERE token_hash = ? AND revoked = 0`,
		tokenHash).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (c *Client) ListAPITokens() ([]APIToken, error) {
	rows, err := c.db.Query(
		`SELECT id, name, created_at, revoked FROM api_tokens ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.Revoked); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *Client) RevokeAPIToken(name string) error {
	res, err := c.db.Exec(`UPDATE api_tokens SET revoked = 1 WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenNotFound
	}
	return nil
}
