package metadata

import (
	"context"
	"strings"

	"mcprouter/internal/rerr"
)

// minTokenLength is the spec's "retain tokens of length > 3" rule.
const minTokenLength = 4

// FindServersForTask tokenizes text, retains tokens longer than 3
// characters, and returns the distinct ids of servers whose capability names
// or tool descriptions contain any token and whose health status is online
// or unrecorded (spec.md §4.3). Fixed to DISTINCT per the REDESIGN FLAG in
// spec.md §9 covering the LEFT JOIN duplicate-row bug in the source.
func (s *Store) FindServersForTask(ctx context.Context, text string) ([]string, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	seen := map[string]struct{}{}
	var out []string
	for _, token := range tokens {
		like := "%" + token + "%"
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT s.id
			FROM servers s
			LEFT JOIN server_health h ON h.server_id = s.id
			LEFT JOIN server_capabilities sc ON sc.server_id = s.id
			LEFT JOIN capabilities c ON c.id = sc.capability_id
			LEFT JOIN tools t ON t.server_id = s.id
			WHERE (c.name LIKE ? OR t.description LIKE ?)
			  AND (h.status IS NULL OR h.status = 'online')
		`, like, like)
		if err != nil {
			return nil, rerr.Registry("FindServersForTask", err, "failed to query token %q", token)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, rerr.Registry("FindServersForTask", err, "failed to scan server id")
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, rerr.Registry("FindServersForTask", err, "failed to iterate rows for token %q", token)
		}
		rows.Close()
	}
	return out, nil
}

func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	var tokens []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if len(f) > minTokenLength-1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ByTag returns the ids of servers tagged with tag.
func (s *Store) ByTag(ctx context.Context, tag string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT server_id FROM server_tags WHERE tag = ?`, tag)
	if err != nil {
		return nil, rerr.Registry("ByTag", err, "failed to query tag %q", tag)
	}
	defer rows.Close()
	return scanStrings(rows, "ByTag")
}

// ByCapability returns the ids of servers advertising cap.
func (s *Store) ByCapability(ctx context.Context, cap string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT sc.server_id
		FROM server_capabilities sc
		JOIN capabilities c ON c.id = sc.capability_id
		WHERE c.name = ?
	`, cap)
	if err != nil {
		return nil, rerr.Registry("ByCapability", err, "failed to query capability %q", cap)
	}
	defer rows.Close()
	return scanStrings(rows, "ByCapability")
}

// AllCapabilities returns every capability with the number of servers
// currently advertising it.
func (s *Store) AllCapabilities(ctx context.Context) ([]CapabilityCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, c.description, COUNT(sc.server_id)
		FROM capabilities c
		LEFT JOIN server_capabilities sc ON sc.capability_id = c.id
		GROUP BY c.id, c.name, c.description
		ORDER BY c.name
	`)
	if err != nil {
		return nil, rerr.Registry("AllCapabilities", err, "failed to query capabilities")
	}
	defer rows.Close()

	var out []CapabilityCount
	for rows.Next() {
		var cc CapabilityCount
		if err := rows.Scan(&cc.Name, &cc.Description, &cc.ServerCount); err != nil {
			return nil, rerr.Registry("AllCapabilities", err, "failed to scan capability count row")
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// AllTags returns every distinct tag in use.
func (s *Store) AllTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM server_tags ORDER BY tag`)
	if err != nil {
		return nil, rerr.Registry("AllTags", err, "failed to query tags")
	}
	defer rows.Close()
	return scanStrings(rows, "AllTags")
}

func scanStrings(rows interface{ Next() bool; Scan(...any) error; Err() error }, op string) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, rerr.Registry(op, err, "failed to scan row")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
