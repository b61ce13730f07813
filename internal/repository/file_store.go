package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

const (
	applicationsDir = "applications"
	grantsDir       = "grants"
	lockFileName    = ".lock"
	recordExt       = ".yaml"
)

// FileStore keeps each record as a YAML file:
//
//	<baseDir>/applications/<id>.yaml
//	<baseDir>/grants/<id>.yaml
//
// Writes are serialized in-process by a mutex and across processes by a
// FileLock on <baseDir>/.lock. Files are replaced atomically so readers
// never take the lock.
type FileStore struct {
	baseDir string
	owner   string
	mu      sync.Mutex
}

// NewFileStore creates the directory layout under baseDir if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	for _, dir := range []string{applicationsDir, grantsDir} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}
	return &FileStore{baseDir: baseDir, owner: "grantdraft"}, nil
}

// BaseDir returns the data directory.
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

// Get reads the application with id.
func (s *FileStore) Get(ctx context.Context, id string) (*schema.ApplicationDocument, error) {
	if err := checkID("application", id); err != nil {
		return nil, err
	}

	var doc schema.ApplicationDocument
	if err := s.readRecord(s.applicationPath(id), &doc); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("application", id)
		}
		return nil, fmt.Errorf("read application %s: %w", id, err)
	}
	return &doc, nil
}

// Put writes doc and increments its Version. On failure doc is untouched.
func (s *FileStore) Put(ctx context.Context, doc *schema.ApplicationDocument) error {
	if err := checkID("application", doc.ID); err != nil {
		return err
	}

	stored := doc.Clone()
	stored.Version++

	data, err := yaml.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode application %s: %w", doc.ID, err)
	}

	if err := s.withWriteLock(ctx, func() error {
		return writeFileAtomic(s.applicationPath(doc.ID), data)
	}); err != nil {
		return err
	}

	doc.Version = stored.Version
	return nil
}

// Delete removes the application with id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkID("application", id); err != nil {
		return err
	}

	return s.withWriteLock(ctx, func() error {
		existed, err := removeFile(s.applicationPath(id))
		if err != nil {
			return fmt.Errorf("delete application %s: %w", id, err)
		}
		if !existed {
			return notFound("application", id)
		}
		return nil
	})
}

// List returns every application, newest first.
func (s *FileStore) List(ctx context.Context) ([]*schema.ApplicationDocument, error) {
	paths, err := s.recordPaths(applicationsDir)
	if err != nil {
		return nil, err
	}

	docs := make([]*schema.ApplicationDocument, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var doc schema.ApplicationDocument
		if err := s.readRecord(path, &doc); err != nil {
			if os.IsNotExist(err) {
				continue // deleted since the directory was read
			}
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		docs = append(docs, &doc)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// GetGrant reads the grant with id.
func (s *FileStore) GetGrant(ctx context.Context, id string) (*schema.Grant, error) {
	if err := checkID("grant", id); err != nil {
		return nil, err
	}

	var grant schema.Grant
	if err := s.readRecord(s.grantPath(id), &grant); err != nil {
		if os.IsNotExist(err) {
			return nil, notFound("grant", id)
		}
		return nil, fmt.Errorf("read grant %s: %w", id, err)
	}
	return &grant, nil
}

// PutGrant creates or replaces a grant record.
func (s *FileStore) PutGrant(ctx context.Context, grant *schema.Grant) error {
	if err := checkID("grant", grant.ID); err != nil {
		return err
	}

	data, err := yaml.Marshal(grant)
	if err != nil {
		return fmt.Errorf("encode grant %s: %w", grant.ID, err)
	}

	return s.withWriteLock(ctx, func() error {
		return writeFileAtomic(s.grantPath(grant.ID), data)
	})
}

// ListGrants returns every grant ordered by ID.
func (s *FileStore) ListGrants(ctx context.Context) ([]*schema.Grant, error) {
	paths, err := s.recordPaths(grantsDir)
	if err != nil {
		return nil, err
	}

	grants := make([]*schema.Grant, 0, len(paths))
	for _, path := range paths {
		var grant schema.Grant
		if err := s.readRecord(path, &grant); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		grants = append(grants, &grant)
	}
	return grants, nil
}

func (s *FileStore) withWriteLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock := NewFileLock(filepath.Join(s.baseDir, lockFileName), s.owner)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	return fn()
}

func (s *FileStore) readRecord(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// recordPaths lists record files in dir sorted by name, skipping temp files.
func (s *FileStore) recordPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		paths = append(paths, filepath.Join(s.baseDir, dir, name))
	}
	return paths, nil
}

func (s *FileStore) applicationPath(id string) string {
	return filepath.Join(s.baseDir, applicationsDir, id+recordExt)
}

func (s *FileStore) grantPath(id string) string {
	return filepath.Join(s.baseDir, grantsDir, id+recordExt)
}
