package dlc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned when a requested announcement, nonce-secret, or
// attestation file does not exist.
var ErrNotFound = errors.New("dlc: not found")

// Store persists announcements, nonce secrets, and attestations as JSON
// files under a data directory, one file per event per kind.
type Store struct {
	dataDir string
}

// NewStore builds a Store rooted at dataDir, creating it if absent.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("dlc: create data dir: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) path(eventID, suffix string) string {
	return filepath.Join(s.dataDir, eventID+"."+suffix+".json")
}

// AnnouncementExists reports whether an announcement file already exists
// for eventID — creation of an announcement is idempotent on this check.
func (s *Store) AnnouncementExists(eventID string) bool {
	_, err := os.Stat(s.path(eventID, "announcement"))
	return err == nil
}

// SaveAnnouncement writes the announcement file.
func (s *Store) SaveAnnouncement(a Announcement) error {
	return writeJSON(s.path(a.EventID, "announcement"), a, 0o644)
}

// LoadAnnouncement reads an announcement by event ID.
func (s *Store) LoadAnnouncement(eventID string) (Announcement, error) {
	var a Announcement
	err := readJSON(s.path(eventID, "announcement"), &a)
	return a, err
}

// ListAnnouncements globs every *.announcement.json file in the data
// directory and returns the decoded announcements, most recent first.
func (s *Store) ListAnnouncements() ([]Announcement, error) {
	matches, err := filepath.Glob(filepath.Join(s.dataDir, "*.announcement.json"))
	if err != nil {
		return nil, fmt.Errorf("dlc: glob announcements: %w", err)
	}

	announcements := make([]Announcement, 0, len(matches))
	for _, m := range matches {
		var a Announcement
		if err := readJSON(m, &a); err != nil {
			return nil, fmt.Errorf("dlc: read %s: %w", m, err)
		}
		announcements = append(announcements, a)
	}

	sort.Slice(announcements, func(i, j int) bool {
		return announcements[i].CreatedAt > announcements[j].CreatedAt
	})
	return announcements, nil
}

// SaveNonceSecrets writes the nonce-secrets file with owner-only
// permissions; this is the file that must not outlive attestation.
func (s *Store) SaveNonceSecrets(n NonceSecrets) error {
	return writeJSON(s.path(n.EventID, "nonces"), n, 0o600)
}

// LoadNonceSecrets reads the nonce secrets for an event.
func (s *Store) LoadNonceSecrets(eventID string) (NonceSecrets, error) {
	var n NonceSecrets
	err := readJSON(s.path(eventID, "nonces"), &n)
	return n, err
}

// NonceSecretsExist reports whether nonce secrets are still on disk for
// eventID (false once attestation has deleted them).
func (s *Store) NonceSecretsExist(eventID string) bool {
	_, err := os.Stat(s.path(eventID, "nonces"))
	return err == nil
}

// DeleteNonceSecrets removes the nonce-secrets file. Must be called
// immediately after an attestation is durably written — nonce reuse
// after publication leaks the oracle private key.
func (s *Store) DeleteNonceSecrets(eventID string) error {
	if err := os.Remove(s.path(eventID, "nonces")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dlc: delete nonce secrets for %s: %w", eventID, err)
	}
	return nil
}

// AttestationExists reports whether an event has already been attested.
func (s *Store) AttestationExists(eventID string) bool {
	_, err := os.Stat(s.path(eventID, "attestation"))
	return err == nil
}

// SaveAttestation writes the attestation file.
func (s *Store) SaveAttestation(a Attestation) error {
	return writeJSON(s.path(a.EventID, "attestation"), a, 0o644)
}

// LoadAttestation reads an attestation by event ID.
func (s *Store) LoadAttestation(eventID string) (Attestation, error) {
	var a Attestation
	err := readJSON(s.path(eventID, "attestation"), &a)
	return a, err
}

// writeJSON marshals v and writes it via a temp file + rename, so a crash
// mid-write never leaves a torn file behind.
func writeJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("dlc: marshal %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("dlc: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dlc: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("dlc: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("dlc: decode %s: %w", path, err)
	}
	return nil
}
