/*
Package devserver embeds a self-contained companion backend for development builds.

This file defines the in-memory account registry. It replaces the production account
database with a seeded map so login, registration, and profile lookups work offline.
*/
package devserver

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/proedition/mucompanion/internal/app/user"
	"github.com/proedition/mucompanion/internal/pkg/errs"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

// seededUsername and seededPassword form the account every development build ships with.
const (
	seededUsername = "test"
	seededPassword = "test"
)

// account pairs a password hash with the account's identity.
type account struct {
	passwordHash []byte
	identity     user.Identity
}

// accountRegistry is the in-memory account database.
type accountRegistry struct {
	mu         sync.Mutex
	byUsername map[string]*account
	nextID     int64
}

// newAccountRegistry constructs the registry pre-seeded with the development account.
func newAccountRegistry() *accountRegistry {
	reg := &accountRegistry{
		byUsername: make(map[string]*account),
		nextID:     2,
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seededPassword), bcrypt.DefaultCost)
	if err != nil {
		logx.Fatal(err, "Failed to hash seeded account password.")
	}

	reg.byUsername[seededUsername] = &account{
		passwordHash: hash,
		identity: user.Identity{
			ID:       1,
			Username: seededUsername,
			Email:    "test@proedition.com",
			VIPLevel: 1,
			Characters: []user.Character{
				{ID: 1, Name: "DarkKnight", Level: 400, Class: user.ClassDarkKnight},
				{ID: 2, Name: "DarkWizard", Level: 380, Class: user.ClassDarkWizard},
			},
			LastLogin: time.Now().UTC().Format(time.RFC3339),
		},
	}

	return reg
}

// authenticate verifies the credential pair and returns the account's identity.
func (reg *accountRegistry) authenticate(username, password string) (user.Identity, *errs.CustomError) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	acc, ok := reg.byUsername[username]
	if !ok {
		return user.Identity{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return user.Identity{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	acc.identity.LastLogin = time.Now().UTC().Format(time.RFC3339)
	return cloneIdentity(acc.identity), nil
}

// create registers a new account with a freshly rolled starter character.
func (reg *accountRegistry) create(username, email, password string) (user.Identity, *errs.CustomError) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.Identity{}, errs.NewError(errs.ErrUnknown, err)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.byUsername[username]; exists {
		return user.Identity{}, errs.NewError(errs.ErrUserAlreadyExists)
	}

	id := reg.nextID
	reg.nextID++

	acc := &account{
		passwordHash: hash,
		identity: user.Identity{
			ID:       id,
			Username: username,
			Email:    email,
			Characters: []user.Character{
				{ID: id * 100, Name: username, Level: 1, Class: user.ClassDarkKnight},
			},
			LastLogin: time.Now().UTC().Format(time.RFC3339),
		},
	}
	reg.byUsername[username] = acc

	return cloneIdentity(acc.identity), nil
}

// lookup returns the identity for the given account ID.
func (reg *accountRegistry) lookup(id int64) (user.Identity, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, acc := range reg.byUsername {
		if acc.identity.ID == id {
			return cloneIdentity(acc.identity), true
		}
	}

	return user.Identity{}, false
}

// cloneIdentity deep-copies an identity so callers cannot mutate registry state.
func cloneIdentity(identity user.Identity) user.Identity {
	identity.Characters = append([]user.Character(nil), identity.Characters...)
	return identity
}
