package session

import "path/filepath"

// AppFilter restricts which sessions are exposed to clients, matched
// against the session identity (the source application's identifier).
// The zero value is a no-op filter.
type AppFilter struct {
	AllowedApps []string
	BlockedApps []string
}

// IsAllowed reports whether a session with the given identity should be
// exposed. When AllowedApps is non-empty, the identity must match at least
// one pattern. If it passes the allowlist, it must not match any
// BlockedApps pattern. Patterns use filepath.Match globs.
func (f *AppFilter) IsAllowed(identity string) bool {
	if identity == "" {
		return true
	}

	if len(f.AllowedApps) > 0 {
		allowed := false
		for _, pattern := range f.AllowedApps {
			if matched, _ := filepath.Match(pattern, identity); matched {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	for _, pattern := range f.BlockedApps {
		if matched, _ := filepath.Match(pattern, identity); matched {
			return false
		}
	}

	return true
}

// FilterRecords returns the subset of records whose identity passes the
// filter. The input slice is not modified.
func (f *AppFilter) FilterRecords(records []*Record) []*Record {
	if len(f.AllowedApps) == 0 && len(f.BlockedApps) == 0 {
		return records
	}
	result := make([]*Record, 0, len(records))
	for _, r := range records {
		if f.IsAllowed(r.ID) {
			result = append(result, r)
		}
	}
	return result
}
