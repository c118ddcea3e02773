// Package pairing implements the durable PlatformUser <-> PairingState
// mapping and pending-code side table used by the chat gateway (C1).
package pairing

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// userKey builds the composite map key for a PlatformUser: equality is on
// (platform, user_id) only, matching the spec's PlatformUser semantics.
func userKey(u store.PlatformUser) string {
	return u.Platform + "\x00" + u.UserID
}

type pendingCodeEntry struct {
	GatewayType string `json:"gateway_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// onDiskState is the JSON persistence envelope.
type onDiskState struct {
	Users        map[string]store.PairingState  `json:"users"`
	PendingCodes map[string]pendingCodeEntry     `json:"pending_codes"`
}

// Service is the core pairing store implementation: an in-memory snapshot
// backed by atomic tempfile+rename JSON persistence at a single path.
// Grounded on internal/sessions.Manager's Save() pattern.
type Service struct {
	mu           sync.Mutex
	path         string
	users        map[string]store.PairingState
	pendingCodes map[string]pendingCodeEntry
}

// NewService loads (or initializes) a pairing store backed by path.
// Persistence errors on load are non-fatal: the service starts empty.
func NewService(path string) *Service {
	s := &Service{
		path:         path,
		users:        make(map[string]store.PairingState),
		pendingCodes: make(map[string]pendingCodeEntry),
	}
	s.load()
	return s
}

func (s *Service) load() {
	if s.path == "" {
		return
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var on onDiskState
	if err := json.Unmarshal(data, &on); err != nil {
		return
	}
	if on.Users != nil {
		s.users = on.Users
	}
	if on.PendingCodes != nil {
		s.pendingCodes = on.PendingCodes
	}
}

// saveLocked persists the current snapshot. Caller must hold s.mu.
func (s *Service) saveLocked() error {
	if s.path == "" {
		return nil
	}

	on := onDiskState{
		Users:        s.users,
		PendingCodes: s.pendingCodes,
	}
	data, err := json.MarshalIndent(on, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "pairing-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// Get returns the current pairing state, or Unpaired if absent. Persistence
// errors never surface here: reads fall back to the in-memory snapshot.
func (s *Service) Get(user store.PlatformUser) (store.PairingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[userKey(user)]; ok {
		return st, nil
	}
	return store.Unpaired, nil
}

// Set writes a new state for user and persists, atomically with respect to
// concurrent Get/Set on the same user (guarded by the service-wide mutex).
func (s *Service) Set(user store.PlatformUser, state store.PairingState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey(user)] = state
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("pairing: save after set: %w", err)
	}
	return nil
}

// Remove deletes a user's pairing state. Idempotent.
func (s *Service) Remove(user store.PlatformUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userKey(user))
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("pairing: save after remove: %w", err)
	}
	return nil
}

// StorePendingCode replaces any existing entry for code.
func (s *Service) StorePendingCode(code, gatewayType string, expiresAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingCodes[code] = pendingCodeEntry{GatewayType: gatewayType, ExpiresAt: expiresAt}
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("pairing: save after store_pending_code: %w", err)
	}
	return nil
}

// ConsumePendingCode removes the code's entry first, then checks expiry:
// an expired code is still consumed (single-use), but ok is false so the
// caller knows the match failed.
func (s *Service) ConsumePendingCode(code string, now int64) (gatewayType string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, found := s.pendingCodes[code]
	if !found {
		return "", false, nil
	}
	delete(s.pendingCodes, code)
	if saveErr := s.saveLocked(); saveErr != nil {
		return "", false, fmt.Errorf("pairing: save after consume_pending_code: %w", saveErr)
	}
	if now > entry.ExpiresAt {
		return "", false, nil
	}
	return entry.GatewayType, true, nil
}

// GenerateCode draws 6 symbols from the ambiguity-free alphabet using a
// cryptographically secure source.
func (s *Service) GenerateCode() string {
	alphabet := store.PairingCodeAlphabet
	buf := make([]byte, 6)
	idx := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is effectively unrecoverable; fall back to a
		// time-seeded draw rather than panic on a best-effort code.
		for i := range buf {
			buf[i] = byte(time.Now().UnixNano() >> uint(i*3))
		}
	}
	for i, b := range buf {
		idx[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(idx)
}

// RequestPairing generates a code and stores it as a pending code for
// gatewayType with the default TTL, for use by platform adapters that want
// to prompt an unpaired user without touching the lower-level primitives.
// userID, chatID and kind are not recorded with the code.
func (s *Service) RequestPairing(userID, gatewayType, chatID, kind string) (string, error) {
	code := s.GenerateCode()
	expiresAt := time.Now().Add(store.PendingCodeTTL).Unix()
	if err := s.StorePendingCode(code, gatewayType, expiresAt); err != nil {
		return "", err
	}
	return code, nil
}

// RemoveAllForPlatform deletes every pairing entry for the given platform tag.
func (s *Service) RemoveAllForPlatform(platform string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := platform + "\x00"
	count := 0
	for k := range s.users {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.users, k)
			count++
		}
	}
	if count > 0 {
		if err := s.saveLocked(); err != nil {
			return count, fmt.Errorf("pairing: save after remove_all_for_platform: %w", err)
		}
	}
	return count, nil
}

// ListPairedUsers returns every currently-paired user on platform.
func (s *Service) ListPairedUsers(platform string) ([]store.PairedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := platform + "\x00"
	var out []store.PairedUser
	for k, st := range s.users {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix || st.State != "paired" {
			continue
		}
		out = append(out, store.PairedUser{
			UserID:    k[len(prefix):],
			SessionID: st.SessionID,
			PairedAt:  st.PairedAt,
		})
	}
	return out, nil
}
