// Package prefs defines the key-value preference port used for settings
// that live outside the relational tables.
package prefs

import "context"

// Well-known keys.
const (
	KeyDefaultWallet = "default-wallet-id"
)

type (
	Reader interface {
		// Get returns the value and whether the key is set.
		Get(ctx context.Context, key string) (value string, ok bool, err error)
	}

	Writer interface {
		Set(ctx context.Context, key, value string) error
	}

	Store interface {
		Reader
		Writer
	}
)
