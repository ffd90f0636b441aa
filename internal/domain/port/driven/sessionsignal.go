package driven

import "errors"

// ErrNotConnected is returned by SessionSignal.Read when no logout URL is
// pending.
var ErrNotConnected = errors.New("no pending session")

// SessionSignal holds the pending logout URL. Its presence means some process
// believes the host is connected; separate processes coordinate only by
// polling it.
type SessionSignal interface {
	Exists() (bool, error)
	Read() (string, error)
	Set(logoutURL string) error
	Clear() error
}

// AttributeStore keeps the most recent attribute UUID, used to guess the next
// session's logout URL.
type AttributeStore interface {
	// LastAttributeUUID returns "" when none was recorded.
	LastAttributeUUID() (string, error)
	SetAttributeUUID(uuid string) error
}
