/*
Package user contains core data structures related to user identity and session.

It defines the client's representation of an authenticated account (the Identity struct)
and its game characters, matching the JSON wire contract of the companion backend.
*/
package user

// Character class names as delivered by the backend.
const (
	ClassDarkKnight     = "Dark Knight"
	ClassDarkWizard     = "Dark Wizard"
	ClassFairyElf       = "Fairy Elf"
	ClassMagicGladiator = "Magic Gladiator"
	ClassDarkLord       = "Dark Lord"
	ClassSummoner       = "Summoner"
	ClassRageFighter    = "Rage Fighter"
)

// validClasses is the fixed enumeration of character classes the client recognizes.
var validClasses = map[string]struct{}{
	ClassDarkKnight:     {},
	ClassDarkWizard:     {},
	ClassFairyElf:       {},
	ClassMagicGladiator: {},
	ClassDarkLord:       {},
	ClassSummoner:       {},
	ClassRageFighter:    {},
}

// IsValidClass reports whether class belongs to the fixed character class enumeration.
func IsValidClass(class string) bool {
	_, ok := validClasses[class]
	return ok
}

// Character represents a single game character attached to an account.
// Characters are immutable from the client's perspective and sourced wholesale from the Identity.
type Character struct {
	// ID is the character's unique identifier.
	ID int64 `json:"id"`

	// Name is the in-game character name.
	Name string `json:"name"`

	// Level is the character level (>= 1).
	Level int `json:"level"`

	// Class is one of the fixed character class names.
	Class string `json:"class"`
}

// Identity represents the authenticated account as delivered by the backend.
// It is owned exclusively by the session manager and cleared on logout.
type Identity struct {
	// ID is the account's unique identifier.
	ID int64 `json:"id"`

	// Username is the account's login name.
	Username string `json:"username"`

	// Email is the account's contact address.
	Email string `json:"email"`

	// VIPLevel is the account's VIP tier (0 when none).
	VIPLevel int `json:"vipLevel"`

	// Characters is the ordered list of game characters on the account.
	Characters []Character `json:"characters"`

	// LastLogin is the RFC3339 timestamp of the most recent login.
	LastLogin string `json:"lastLogin"`
}
