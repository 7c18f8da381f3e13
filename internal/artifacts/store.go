// Package artifacts implements content-addressed artifact storage: file
// bodies on disk under a root directory, indexed by manifest rows in the
// memory store (spec.md §4.4). Grounded on internal/memory/documents.go's
// create/get/list shape, generalized from inline text content to arbitrary
// byte bodies written to disk and integrity-checked with SHA-256.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentic-qe/kernel/internal/kerrors"
	"github.com/agentic-qe/kernel/internal/memory"
)

// Store persists artifact bodies under root and indexes them in db.
type Store struct {
	db   *memory.DB
	root string
}

// New creates a Store rooted at root, creating the directory if absent.
func New(db *memory.DB, root string) (*Store, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &Store{db: db, root: absRoot}, nil
}

// resolvePath joins root and a caller-supplied relative path, rejecting any
// result that escapes root (spec.md §9 Open Question, resolved REJECTED:
// path traversal is never tolerated, not even for trusted callers).
func (s *Store) resolvePath(relPath string) (string, error) {
	joined := filepath.Clean(filepath.Join(s.root, relPath))
	rootWithSep := s.root + string(filepath.Separator)
	if joined != s.root && !strings.HasPrefix(joined, rootWithSep) {
		return "", kerrors.Integrity("artifacts.resolvePath", "path %q escapes artifact root", relPath)
	}
	return joined, nil
}

// CreateArtifact writes body to disk under path, hashes it, and inserts a
// manifest row. If previousVersion is non-empty, the new manifest links back
// to it, forming a version chain.
func (s *Store) CreateArtifact(id string, kind memory.ArtifactKind, relPath string, body []byte, tags []string, previousVersion string) (*memory.ArtifactManifest, error) {
	fullPath, err := s.resolvePath(relPath)
	if err != nil {
		return nil, err
	}

	if previousVersion != "" {
		if _, err := s.db.GetArtifactManifest(previousVersion); err != nil {
			return nil, fmt.Errorf("resolve previous version: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact body: %w", err)
	}

	sum := sha256.Sum256(body)

	manifest := &memory.ArtifactManifest{
		ID:              id,
		Kind:            kind,
		Path:            relPath,
		SHA256:          hex.EncodeToString(sum[:]),
		Tags:            tags,
		Size:            int64(len(body)),
		PreviousVersion: previousVersion,
	}
	if err := s.db.PutArtifactManifest(manifest); err != nil {
		os.Remove(fullPath)
		return nil, err
	}
	return manifest, nil
}

// RetrieveArtifact loads a manifest's body from disk and verifies its SHA-256
// digest against the stored value, returning an IntegrityError on mismatch.
func (s *Store) RetrieveArtifact(id string) (*memory.ArtifactManifest, []byte, error) {
	manifest, err := s.db.GetArtifactManifest(id)
	if err != nil {
		return nil, nil, err
	}

	fullPath, err := s.resolvePath(manifest.Path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open artifact body: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	body, err := io.ReadAll(io.TeeReader(f, h))
	if err != nil {
		return nil, nil, fmt.Errorf("read artifact body: %w", err)
	}

	if hex.EncodeToString(h.Sum(nil)) != manifest.SHA256 {
		return nil, nil, kerrors.Integrity("artifacts.retrieveArtifact", "artifact %q failed sha256 verification", id)
	}

	return manifest, body, nil
}

// QueryByKind lists manifests of a kind.
func (s *Store) QueryByKind(kind memory.ArtifactKind) ([]*memory.ArtifactManifest, error) {
	return s.db.QueryArtifactsByKind(kind)
}

// QueryByTag lists manifests carrying tag.
func (s *Store) QueryByTag(tag string) ([]*memory.ArtifactManifest, error) {
	return s.db.QueryArtifactsByTag(tag)
}

// CreateArtifactVersion writes a new body for an existing artifact lineage,
// chaining it off the current head (previousID). If path is empty, a
// version-suffixed path is synthesized from the previous version's path so
// the new body never overwrites the previous version's (spec.md §4.4). If
// tags is nil, the previous version's tags are inherited.
func (s *Store) CreateArtifactVersion(newID, previousID string, body []byte, path string, tags []string) (*memory.ArtifactManifest, error) {
	prev, err := s.db.GetArtifactManifest(previousID)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = versionSuffixedPath(prev.Path, newID)
	}
	if tags == nil {
		tags = prev.Tags
	}
	return s.CreateArtifact(newID, prev.Kind, path, body, tags, previousID)
}

// versionSuffixedPath appends a ".<suffix>" path segment before the
// extension (or at the end, for extensionless paths) so a new version's body
// lands next to, rather than on top of, the previous version's.
func versionSuffixedPath(prevPath, suffix string) string {
	ext := filepath.Ext(prevPath)
	base := strings.TrimSuffix(prevPath, ext)
	return fmt.Sprintf("%s.%s%s", base, suffix, ext)
}

// GetVersionHistory walks the previous_version chain from id, newest first.
func (s *Store) GetVersionHistory(id string) ([]*memory.ArtifactManifest, error) {
	return s.db.VersionChain(id)
}

// GetLatestVersion returns the most recent manifest in a version chain given
// any member of the chain, following previous_version links forward to the
// leaf. Successors are looked up among manifests of the same kind as id.
func (s *Store) GetLatestVersion(id string) (*memory.ArtifactManifest, error) {
	cur, err := s.db.GetArtifactManifest(id)
	if err != nil {
		return nil, err
	}
	sameKind, err := s.db.QueryArtifactsByKind(cur.Kind)
	if err != nil {
		return nil, err
	}
	next := map[string]*memory.ArtifactManifest{}
	for _, m := range sameKind {
		next[m.PreviousVersion] = m
	}
	for seen := map[string]bool{}; next[cur.ID] != nil && !seen[cur.ID]; {
		seen[cur.ID] = true
		cur = next[cur.ID]
	}
	return cur, nil
}

// DeleteArtifact removes an artifact's body and manifest. It does not
// cascade to older versions in its chain.
func (s *Store) DeleteArtifact(id string) error {
	manifest, err := s.db.GetArtifactManifest(id)
	if err != nil {
		return err
	}
	fullPath, err := s.resolvePath(manifest.Path)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact body: %w", err)
	}
	return s.db.DeleteArtifactManifest(id)
}
