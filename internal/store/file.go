package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	profilesFile = "profiles.json"
	tokensFile   = ".tokens.json"
)

// File keeps profiles and credentials as JSON documents in a data directory.
// Writes go through a temp file and rename so a crash never leaves a torn
// document behind.
type File struct {
	dir    string
	sealer *Sealer

	profMu  sync.Mutex
	credsMu sync.Mutex
}

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string, sealer *Sealer) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &File{dir: dir, sealer: sealer}, nil
}

type profilesDoc struct {
	Members []Member `json:"members"`
}

func (f *File) ReadAll(ctx context.Context) ([]Member, error) {
	f.profMu.Lock()
	defer f.profMu.Unlock()

	var doc profilesDoc
	if err := readJSON(filepath.Join(f.dir, profilesFile), &doc); err != nil {
		return nil, err
	}
	return doc.Members, nil
}

func (f *File) WriteAll(ctx context.Context, members []Member) error {
	f.profMu.Lock()
	defer f.profMu.Unlock()

	if members == nil {
		members = []Member{}
	}
	return writeJSON(filepath.Join(f.dir, profilesFile), profilesDoc{Members: members}, 0o644)
}

func (f *File) Get(ctx context.Context, memberID string) (TokenRecord, error) {
	f.credsMu.Lock()
	defer f.credsMu.Unlock()

	all, err := f.readTokens()
	if err != nil {
		return TokenRecord{}, err
	}
	rec, ok := all[memberID]
	if !ok {
		return TokenRecord{}, ErrNotFound
	}
	return f.sealer.openRecord(rec)
}

func (f *File) Put(ctx context.Context, memberID string, rec TokenRecord) error {
	f.credsMu.Lock()
	defer f.credsMu.Unlock()

	all, err := f.readTokens()
	if err != nil {
		return err
	}
	sealed, err := f.sealer.sealRecord(rec)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	all[memberID] = sealed
	return writeJSON(filepath.Join(f.dir, tokensFile), all, 0o600)
}

func (f *File) readTokens() (map[string]TokenRecord, error) {
	all := make(map[string]TokenRecord)
	if err := readJSON(filepath.Join(f.dir, tokensFile), &all); err != nil {
		return nil, err
	}
	return all, nil
}

// readJSON decodes path into v. A missing file leaves v untouched.
func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any, perm os.FileMode) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
