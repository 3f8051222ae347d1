// Package session persists the signed-in identity between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/KaramelBytes/socialhub-cli/internal/utils"
)

// Keys stored in the KV.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// ErrNotSignedIn is returned by profile operations without a session.
var ErrNotSignedIn = errors.New("not signed in")

// KV is a tiny persistent key-value store.
type KV interface {
	Get(key string) (json.RawMessage, bool, error)
	Set(key string, value any) error
	Delete(keys ...string) error
}

// FileKV keeps every key in one JSON object on disk, rewritten atomically.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV returns a KV backed by path. The file is created on first write.
func NewFileKV(path string) *FileKV { return &FileKV{path: path} }

func (f *FileKV) load() (map[string]json.RawMessage, error) {
	m := map[string]json.RawMessage{}
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", f.path, err)
	}
	return m, nil
}

func (f *FileKV) save(m map[string]json.RawMessage) error {
	b, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(f.path, b, 0o600)
}

func (f *FileKV) Get(key string) (json.RawMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (f *FileKV) Set(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	m[key] = b
	return f.save(m)
}

func (f *FileKV) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(m, k)
	}
	return f.save(m)
}

// User is the signed-in profile.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// MockUser is the demo identity every sign-in resolves to.
var MockUser = User{Name: "Alex Morgan", Email: "alex@demo.com", Role: "Lead Analyst"}

// DefaultRole fills an empty role on profile updates.
const DefaultRole = "Analyst"

// Manager signs users in and out over a KV.
type Manager struct {
	kv KV
}

func NewManager(kv KV) *Manager { return &Manager{kv: kv} }

// SignIn stores u with a fresh token and returns the token.
func (m *Manager) SignIn(u User) (string, error) {
	token := uuid.NewString()
	if err := m.kv.Set(KeyUser, u); err != nil {
		return "", err
	}
	if err := m.kv.Set(KeyToken, token); err != nil {
		return "", err
	}
	return token, nil
}

// SignOut removes the user and token.
func (m *Manager) SignOut() error { return m.kv.Delete(KeyUser, KeyToken) }

// Current returns the stored user, or nil when nobody is signed in.
func (m *Manager) Current() (*User, error) {
	raw, ok, err := m.kv.Get(KeyUser)
	if err != nil || !ok {
		return nil, err
	}
	if _, hasToken, err := m.kv.Get(KeyToken); err != nil || !hasToken {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// UpdateProfile merges the non-empty fields of patch into the stored user.
func (m *Manager) UpdateProfile(patch User) (*User, error) {
	u, err := m.Current()
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotSignedIn
	}
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.Role != "" {
		u.Role = patch.Role
	}
	if u.Role == "" {
		u.Role = DefaultRole
	}
	if err := m.kv.Set(KeyUser, u); err != nil {
		return nil, err
	}
	return u, nil
}
