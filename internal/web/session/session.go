// Package session keeps the admin login state in a fiber session storage.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// Store is the global session store instance.
var Store *session.Store //nolint:gochecknoglobals

// Data is the content of one admin session.
type Data struct {
	UserID   uint64
	Username string
	// Flash is a one-shot message shown on the next admin page.
	Flash string
}

// Valid reports whether the session belongs to a logged in user.
func (s *Data) Valid() bool {
	return s.UserID > 0
}

// Write writes the session data for the given session ID with an expiration duration.
func (s *Data) Write(sessionID string, exp time.Duration) error {
	out, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return Store.Storage.Set(sessionID, out, exp)
}

// Read reads the session data for the given session ID.
// A missing session leaves s empty.
func (s *Data) Read(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	byteData, err := Store.Storage.Get(sessionID)
	if err != nil || len(byteData) == 0 {
		return err
	}

	return json.Unmarshal(byteData, s)
}

// Delete removes the session with the given ID.
func Delete(sessionID string) error {
	if sessionID == "" {
		return nil
	}

	return Store.Storage.Delete(sessionID)
}

// Init initializes the session store. A nil storage keeps sessions in memory.
func Init(storage fiber.Storage, exp time.Duration) {
	Store = session.New(session.Config{
		Storage:    storage,
		Expiration: exp,
	})
}

// GenerateSessionID generates a new secure random session ID.
func GenerateSessionID() (string, error) {
	// 32 bytes = 256 bits
	b := make([]byte, 32) //nolint:mnd
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}
