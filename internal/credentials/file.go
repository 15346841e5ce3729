package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// FileName is the name of the built-in credential file below the settings directory.
const FileName = "credentials.yaml"

// FileManager is the built-in credential manager. It keeps secrets in a file
// only readable by the current user.
type FileManager struct {
	mu   sync.Mutex
	path string
}

// NewFileManager creates a FileManager for the file at path.
func NewFileManager(path string) *FileManager {
	return &FileManager{path: path}
}

func (m *FileManager) Load(_ context.Context, account string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	secrets, err := m.read()
	if err != nil {
		return "", err
	}
	secret, ok := secrets[account]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	return secret, nil
}

func (m *FileManager) Save(_ context.Context, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secrets, err := m.read()
	if err != nil {
		return err
	}
	secrets[account] = secret
	return m.write(secrets)
}

func (m *FileManager) Delete(_ context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	secrets, err := m.read()
	if err != nil {
		return err
	}
	if _, ok := secrets[account]; !ok {
		return nil
	}
	delete(secrets, account)
	return m.write(secrets)
}

func (m *FileManager) read() (map[string]string, error) {
	secrets := map[string]string{}
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return secrets, nil
	} else if err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not read credentials %q", m.path), err)
	}
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not parse credentials %q", m.path), err)
	}
	if secrets == nil {
		secrets = map[string]string{}
	}
	return secrets, nil
}

func (m *FileManager) write(secrets map[string]string) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return types.NewError(types.ErrIO, "could not encode credentials", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not create directory for credentials %q", m.path), err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not write credentials %q", m.path), err)
	}
	return nil
}
