package directory

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Role enumerates the account types a user may hold. A freshly
// registered user has no role until one is selected.
type Role string

const (
	RoleNone        Role = ""
	RolePetOwner    Role = "PetOwner"
	RoleNonPetOwner Role = "NonPetOwner"
	RoleShelter     Role = "AnimalShelter"
	RoleOwner       Role = "Owner"
)

// usernamePattern excludes the thread-id join delimiter so derived
// thread identifiers stay unambiguous.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9.-]{3,32}$`)

var (
	// ErrInvalidUsername indicates a username outside the accepted alphabet or length.
	ErrInvalidUsername = errors.New("directory: invalid username")
	// ErrInvalidPassword indicates a missing registration password.
	ErrInvalidPassword = errors.New("directory: invalid password")
	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = errors.New("directory: invalid role")
	// ErrInvalidPet indicates a pet profile with missing or malformed fields.
	ErrInvalidPet = errors.New("directory: invalid pet profile")
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RolePetOwner, RoleNonPetOwner, RoleShelter, RoleOwner:
		return Role(raw), nil
	default:
		return RoleNone, fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Pet is a profile owned by exactly one user.
type Pet struct {
	Name        string   `json:"name"`
	Breed       string   `json:"breed"`
	Age         int      `json:"age"`
	Description string   `json:"description"`
	Pictures    []string `json:"pictures,omitempty"`
}

func (p Pet) validate() error {
	if p.Name == "" || p.Breed == "" {
		return fmt.Errorf("%w: name and breed are required", ErrInvalidPet)
	}
	if p.Age <= 0 {
		return fmt.Errorf("%w: age must be positive", ErrInvalidPet)
	}
	return nil
}

// User is the persisted account record. PasswordHash holds a bcrypt
// digest, never the raw credential.
type User struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"passwordHash"`
	Role         Role        `json:"role,omitempty"`
	Pets         []Pet       `json:"pets"`
	Logins       []time.Time `json:"logins,omitempty"`
}

// ValidateUsername checks the registration alphabet rule.
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return nil
}

// BrowsePet is a pet profile tagged with its owning username, produced
// when a user browses other users' pets.
type BrowsePet struct {
	Pet
	Owner string `json:"owner"`
}

// LoginStat counts successful logins within one calendar month.
type LoginStat struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}
