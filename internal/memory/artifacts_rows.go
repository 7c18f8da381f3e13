package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/agentic-qe/kernel/internal/kerrors"
)

// PutArtifactManifest inserts or replaces a manifest row. The artifacts
// package owns content hashing and on-disk placement; this only persists
// the indexed metadata (spec.md §4.4).
func (d *DB) PutArtifactManifest(m *ArtifactManifest) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = nowMS()
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = d.conn.Exec(`
		INSERT INTO artifacts (id, kind, path, sha256, tags, size, created_at, previous_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			path = excluded.path,
			sha256 = excluded.sha256,
			tags = excluded.tags,
			size = excluded.size,
			previous_version = excluded.previous_version`,
		m.ID, m.Kind, m.Path, m.SHA256, string(tagsJSON), m.Size, m.CreatedAt, nullString(m.PreviousVersion),
	)
	if err != nil {
		return fmt.Errorf("put artifact manifest: %w", err)
	}
	return nil
}

func scanArtifactManifest(row interface {
	Scan(dest ...interface{}) error
}) (*ArtifactManifest, error) {
	var m ArtifactManifest
	var tagsJSON string
	var previousVersion sql.NullString
	err := row.Scan(&m.ID, &m.Kind, &m.Path, &m.SHA256, &tagsJSON, &m.Size, &m.CreatedAt, &previousVersion)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	m.PreviousVersion = previousVersion.String
	return &m, nil
}

const artifactColumns = `id, kind, path, sha256, tags, size, created_at, previous_version`

// GetArtifactManifest fetches a manifest row by id.
func (d *DB) GetArtifactManifest(id string) (*ArtifactManifest, error) {
	row := d.conn.QueryRow("SELECT "+artifactColumns+" FROM artifacts WHERE id = ?", id)
	m, err := scanArtifactManifest(row)
	if err == sql.ErrNoRows {
		return nil, kerrors.NotFound("memory.getArtifactManifest", "artifact %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact manifest: %w", err)
	}
	return m, nil
}

// QueryArtifactsByKind returns manifests of a given kind, newest-first.
func (d *DB) QueryArtifactsByKind(kind ArtifactKind) ([]*ArtifactManifest, error) {
	rows, err := d.conn.Query("SELECT "+artifactColumns+" FROM artifacts WHERE kind = ? ORDER BY created_at DESC", kind)
	if err != nil {
		return nil, fmt.Errorf("query artifacts by kind: %w", err)
	}
	defer rows.Close()
	return scanArtifactRows(rows)
}

// QueryArtifactsByTag returns manifests whose tags array contains tag. SQLite
// has no native array containment operator, so this filters in Go after a
// LIKE prefilter on the JSON text.
func (d *DB) QueryArtifactsByTag(tag string) ([]*ArtifactManifest, error) {
	rows, err := d.conn.Query(`
		SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE tags LIKE '%' || ? || '%'
		ORDER BY created_at DESC`, tag,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts by tag: %w", err)
	}
	defer rows.Close()

	all, err := scanArtifactRows(rows)
	if err != nil {
		return nil, err
	}

	var out []*ArtifactManifest
	for _, m := range all {
		for _, t := range m.Tags {
			if t == tag {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

// VersionChain walks previous_version links from id back to the root,
// newest-first.
func (d *DB) VersionChain(id string) ([]*ArtifactManifest, error) {
	var chain []*ArtifactManifest
	seen := map[string]bool{}
	cur := id
	for cur != "" {
		if seen[cur] {
			return nil, kerrors.Integrity("memory.versionChain", "cycle detected in version chain at %q", cur)
		}
		seen[cur] = true

		m, err := d.GetArtifactManifest(cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
		cur = m.PreviousVersion
	}
	return chain, nil
}

func scanArtifactRows(rows *sql.Rows) ([]*ArtifactManifest, error) {
	var out []*ArtifactManifest
	for rows.Next() {
		m, err := scanArtifactManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact manifest: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteArtifactManifest removes a manifest row (the artifacts package is
// responsible for removing the underlying file body first).
func (d *DB) DeleteArtifactManifest(id string) error {
	if _, err := d.conn.Exec("DELETE FROM artifacts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete artifact manifest: %w", err)
	}
	return nil
}
