package memory

import (
	"sort"
	"strings"
)

// applyFilter runs the full query pipeline over a candidate slice: predicate
// filtering, sorting, then offset/limit pagination. Expired entries are
// always excluded; logical absence does not wait for the sweep.
func applyFilter(entries []*Entry, filter QueryFilter) []*Entry {
	now := SystemClock{}.Now()
	var matched []*Entry
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		if matchesFilter(e, filter) {
			matched = append(matched, e)
		}
	}

	sortEntries(matched, filter.SortBy, filter.SortOrder)
	return paginate(matched, filter.Offset, filter.Limit)
}

func matchesFilter(e *Entry, f QueryFilter) bool {
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	if f.Partition != "" && e.Partition != f.Partition {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Owner != "" && e.Owner != f.Owner {
		return false
	}
	if f.AccessLevel != "" && e.AccessLevel != f.AccessLevel {
		return false
	}
	if f.CreatedAfter != nil && !e.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.UpdatedAfter != nil && !e.UpdatedAt.After(*f.UpdatedAfter) {
		return false
	}
	for _, want := range f.Tags {
		if !hasTag(e, want) {
			return false
		}
	}
	return true
}

func hasTag(e *Entry, tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// sortEntries orders entries by the named field. An empty field defaults to
// updatedAt descending (most recently updated first). Dotted fields resolve
// into entry metadata, e.g. "metadata.priority".
func sortEntries(entries []*Entry, field string, order SortOrder) {
	if field == "" {
		field = "updatedAt"
		if order == "" {
			order = SortDesc
		}
	}
	if order == "" {
		order = SortAsc
	}

	less := func(a, b *Entry) bool { return fieldLess(a, b, field) }
	sort.SliceStable(entries, func(i, j int) bool {
		if order == SortDesc {
			return less(entries[j], entries[i])
		}
		return less(entries[i], entries[j])
	})
}

func fieldLess(a, b *Entry, field string) bool {
	switch field {
	case "key":
		return a.Key < b.Key
	case "namespace":
		return a.Namespace < b.Namespace
	case "type":
		return a.Type < b.Type
	case "owner":
		return a.Owner < b.Owner
	case "createdAt":
		return a.CreatedAt.Before(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "accessedAt":
		return a.AccessedAt.Before(b.AccessedAt)
	case "accessCount":
		return a.AccessCount < b.AccessCount
	case "version":
		return a.Version < b.Version
	case "size":
		return a.Size < b.Size
	}
	if name, ok := strings.CutPrefix(field, "metadata."); ok {
		return a.Metadata[name] < b.Metadata[name]
	}
	// Unknown fields keep input order; SliceStable makes this harmless.
	return false
}

func paginate(entries []*Entry, offset, limit int) []*Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// matchPattern implements Search's pattern semantics: "*" matches any run,
// "?" matches one character, and a pattern without wildcards matches as a
// case-insensitive substring.
func matchPattern(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(strings.ToLower(s), strings.ToLower(pattern))
	}
	return globMatch(strings.ToLower(pattern), strings.ToLower(s))
}

func globMatch(pattern, s string) bool {
	// Iterative glob with single-star backtracking.
	var pi, si, starPi, starSi int
	starPi, starSi = -1, -1
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == s[si]):
			pi++
			si++
		case pi < len(pattern) && pattern[pi] == '*':
			starPi, starSi = pi, si
			pi++
		case starPi >= 0:
			starSi++
			pi = starPi + 1
			si = starSi
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
