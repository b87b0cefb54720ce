package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/evalix/storage/remote"
)

// Name is the key the session is stored under.
const Name = "evalix_user"

// Session is what a login leaves behind.
type Session struct {
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// FileStore keeps the Session in a JSON file.
// The remote client only reads it; `admin login` writes it.
type FileStore struct {
	path string
}

var _ remote.TokenProvider = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

// Load returns the stored Session; a missing file is an empty Session.
func (s *FileStore) Load() (Session, error) {
	var sess Session
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sess, nil
		}
		return sess, errors.Wrap(err, "reading session")
	}
	// an unreadable session is treated as no session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, nil
	}
	return sess, nil
}

func (s *FileStore) Save(sess Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "writing session")
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session")
	}
	return nil
}

// Token implements remote.TokenProvider.
func (s *FileStore) Token(context.Context) (string, error) {
	sess, err := s.Load()
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}
