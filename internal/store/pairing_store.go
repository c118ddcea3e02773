package store

import "time"

// PlatformUser identifies a user on a specific external platform.
// Equality is on (Platform, UserID) only; DisplayName is metadata.
type PlatformUser struct {
	Platform    string
	UserID      string
	DisplayName string
}

// PairingState is the sum type of possible pairing states for a PlatformUser.
// Exactly one of the three is meaningful for a given value: check State.
type PairingState struct {
	State string // "unpaired", "pending", "paired"

	// Valid when State == "pending".
	Code      string
	ExpiresAt int64 // unix seconds

	// Valid when State == "paired".
	SessionID string
	PairedAt  int64 // unix seconds
}

// Unpaired is the zero PairingState, returned for any user with no entry.
var Unpaired = PairingState{State: "unpaired"}

// PairedUser is a row in the paired-users listing for a platform.
type PairedUser struct {
	UserID    string
	SessionID string
	PairedAt  int64
}

// PairingStore durably maps PlatformUser -> PairingState, plus a side table
// of unconsumed pending codes. Implementations must load once at start and
// write through on every mutation.
type PairingStore interface {
	Get(user PlatformUser) (PairingState, error)
	Set(user PlatformUser, state PairingState) error
	Remove(user PlatformUser) error

	// StorePendingCode replaces any existing entry with the same code.
	StorePendingCode(code, gatewayType string, expiresAt int64) error

	// ConsumePendingCode atomically removes the matching entry. It returns
	// the associated gatewayType and ok=true only if now <= expiresAt; an
	// expired entry is still removed but reports ok=false.
	ConsumePendingCode(code string, now int64) (gatewayType string, ok bool, err error)

	// GenerateCode draws 6 symbols from the ambiguity-free alphabet.
	GenerateCode() string

	// RequestPairing generates a code, stores it as a pending code for the
	// given gatewayType with the default 300s TTL, and returns it. userID,
	// chatID and kind (an adapter-supplied label, e.g. "default", "group")
	// are not recorded with the code.
	RequestPairing(userID, gatewayType, chatID, kind string) (code string, err error)

	RemoveAllForPlatform(platform string) (count int, err error)
	ListPairedUsers(platform string) ([]PairedUser, error)
}

// PendingCodeTTL is the default lifetime of a generated pairing code.
const PendingCodeTTL = 300 * time.Second

// PairingCodeAlphabet is the ambiguity-free alphabet used for generated codes.
const PairingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NormalizePairingCode uppercases and strips dashes/spaces. It returns ok=false
// unless the result is exactly 6 characters, all drawn from PairingCodeAlphabet.
func NormalizePairingCode(raw string) (code string, ok bool) {
	var b []byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '-' || c == ' ':
			continue
		case c >= 'a' && c <= 'z':
			b = append(b, c-'a'+'A')
		default:
			b = append(b, c)
		}
	}
	if len(b) != 6 {
		return "", false
	}
	for _, c := range b {
		if !isPairingAlphabetChar(c) {
			return "", false
		}
	}
	return string(b), true
}

func isPairingAlphabetChar(c byte) bool {
	for i := 0; i < len(PairingCodeAlphabet); i++ {
		if PairingCodeAlphabet[i] == c {
			return true
		}
	}
	return false
}
