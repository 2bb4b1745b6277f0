package session

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// UserFile persists the authenticated user record to the state
// directory, the durable anchor the session is rebuilt from after a
// restart. Access tokens are never written here.
type UserFile struct {
	path string
}

func NewUserFile(stateDir string) *UserFile {
	return &UserFile{path: filepath.Join(stateDir, "user.json")}
}

func (f *UserFile) Save(u *User) error {
	if u == nil {
		return f.Clear()
	}
	b, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}

// Load returns (nil, nil) when no record has been saved yet.
func (f *UserFile) Load() (*User, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var u User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (f *UserFile) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
