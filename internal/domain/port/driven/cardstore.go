package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/nauta/internal/domain/model"
)

// Sentinel errors returned by CardStore implementations.
var (
	// ErrCardNotFound indicates no card is stored under the requested username.
	ErrCardNotFound = errors.New("card not found")

	// ErrStoreCorruption indicates a stored record could not be decoded. It
	// affects only the record it was returned for.
	ErrStoreCorruption = errors.New("card record is corrupt")
)

// CardStore defines the driven port for card persistence. Usernames are
// expected to be normalized by the caller.
type CardStore interface {
	// Get returns ErrCardNotFound when the username is absent and
	// ErrStoreCorruption when its record cannot be decoded.
	Get(ctx context.Context, username string) (*model.Card, error)

	// Put stores or replaces the card.
	Put(ctx context.Context, card model.Card) error

	// Update applies fn to the stored card and writes the result back as one
	// atomic read-modify-write. If fn returns an error nothing is written.
	Update(ctx context.Context, username string, fn func(*model.Card) error) error

	// Delete removes the given usernames in one transaction. Missing
	// usernames are ignored.
	Delete(ctx context.Context, usernames []string) error

	// List returns every decodable card in storage order. Corrupt records
	// are skipped.
	List(ctx context.Context) ([]model.Card, error)

	// Usernames returns every stored key in storage order, including keys
	// whose record is corrupt.
	Usernames(ctx context.Context) ([]string, error)
}
