package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ericfisherdev/nauta/internal/domain/model"
	"github.com/ericfisherdev/nauta/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CardStore = (*CardRepo)(nil)

// CardRepo is the SQLite implementation of the CardStore port interface.
// Each card is one row holding a JSON payload keyed by username. Rows are
// listed in insertion order.
type CardRepo struct {
	db *DB
}

// NewCardRepo creates a new CardRepo backed by the given DB.
func NewCardRepo(db *DB) *CardRepo {
	return &CardRepo{db: db}
}

// cardRecord is the stored payload. LastUpdate is Unix seconds.
type cardRecord struct {
	Password   string  `json:"password"`
	TimeLeft   string  `json:"time_left,omitempty"`
	LastUpdate float64 `json:"last_update,omitempty"`
	ExpireDate string  `json:"expire_date,omitempty"`
}

// Get retrieves the card stored under username.
func (r *CardRepo) Get(ctx context.Context, username string) (*model.Card, error) {
	const query = `SELECT payload FROM cards WHERE username = ?`

	var payload string
	err := r.db.Reader.QueryRowContext(ctx, query, username).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get card %q: %w", username, driven.ErrCardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get card %q: %w", username, err)
	}

	return decodeCard(username, payload)
}

// Put stores or replaces the card. Replacing keeps the card's position in
// listing order.
func (r *CardRepo) Put(ctx context.Context, card model.Card) error {
	payload, err := encodeCard(card)
	if err != nil {
		return err
	}

	const query = `INSERT INTO cards (username, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(username) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	if _, err := r.db.Writer.ExecContext(ctx, query, card.Username, payload); err != nil {
		return fmt.Errorf("put card %q: %w", card.Username, err)
	}
	return nil
}

// Update applies fn to the stored card inside a write transaction. The
// username cannot be changed by fn.
func (r *CardRepo) Update(ctx context.Context, username string, fn func(*model.Card) error) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %q: %w", username, err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	err = tx.QueryRowContext(ctx, `SELECT payload FROM cards WHERE username = ?`, username).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update card %q: %w", username, driven.ErrCardNotFound)
	}
	if err != nil {
		return fmt.Errorf("update card %q: %w", username, err)
	}

	card, err := decodeCard(username, payload)
	if err != nil {
		return err
	}

	if err := fn(card); err != nil {
		return err
	}
	card.Username = username

	updated, err := encodeCard(*card)
	if err != nil {
		return err
	}

	const query = `UPDATE cards SET payload = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`
	if _, err := tx.ExecContext(ctx, query, updated, username); err != nil {
		return fmt.Errorf("update card %q: %w", username, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %q: %w", username, err)
	}
	return nil
}

// Delete removes every given username in a single transaction.
func (r *CardRepo) Delete(ctx context.Context, usernames []string) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, username := range usernames {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE username = ?`, username); err != nil {
			return fmt.Errorf("delete card %q: %w", username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// List returns all decodable cards in insertion order. Corrupt records are
// logged and skipped.
func (r *CardRepo) List(ctx context.Context) ([]model.Card, error) {
	const query = `SELECT username, payload FROM cards ORDER BY rowid`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	cards := []model.Card{}
	for rows.Next() {
		var username, payload string
		if err := rows.Scan(&username, &payload); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}

		card, err := decodeCard(username, payload)
		if err != nil {
			slog.Warn("skipping corrupt card record", "username", username, "error", err)
			continue
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}

	return cards, nil
}

// Usernames returns every stored username in insertion order.
func (r *CardRepo) Usernames(ctx context.Context) ([]string, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `SELECT username FROM cards ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list usernames: %w", err)
	}
	defer rows.Close()

	usernames := []string{}
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		usernames = append(usernames, username)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usernames: %w", err)
	}

	return usernames, nil
}

func encodeCard(card model.Card) (string, error) {
	rec := cardRecord{
		Password:   card.Password,
		TimeLeft:   card.TimeLeft,
		ExpireDate: card.ExpireDate,
	}
	if !card.LastUpdate.IsZero() {
		rec.LastUpdate = float64(card.LastUpdate.UnixMicro()) / 1e6
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode card %q: %w", card.Username, err)
	}
	return string(data), nil
}

func decodeCard(username, payload string) (*model.Card, error) {
	var rec cardRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode card %q: %w: %w", username, driven.ErrStoreCorruption, err)
	}

	card := &model.Card{
		Username:   username,
		Password:   rec.Password,
		TimeLeft:   rec.TimeLeft,
		ExpireDate: rec.ExpireDate,
	}
	if rec.LastUpdate > 0 {
		card.LastUpdate = time.UnixMicro(int64(math.Round(rec.LastUpdate * 1e6)))
	}
	return card, nil
}
