package docs

import (
	"path"
	"strings"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/codehost"
)

var documentableExtensions = map[string]struct{}{
	".js":   {},
	".jsx":  {},
	".ts":   {},
	".tsx":  {},
	".py":   {},
	".go":   {},
	".java": {},
	".cs":   {},
	".rb":   {},
	".php":  {},
	".rs":   {},
	".md":   {},
	".json": {},
	".yml":  {},
	".yaml": {},
}

// IsDocumentable reports whether a file name has an allow-listed extension or names a README.
func IsDocumentable(fileName string) bool {
	if isReadme(fileName) {
		return true
	}
	_, ok := documentableExtensions[strings.ToLower(path.Ext(fileName))]
	return ok
}

// SelectCandidates keeps documentable files in listing order, at most limit of them.
func SelectCandidates(entries []codehost.ContentEntry, limit int) []codehost.ContentEntry {
	if limit <= 0 {
		return []codehost.ContentEntry{}
	}
	candidates := make([]codehost.ContentEntry, 0, limit)
	for _, entry := range entries {
		if len(candidates) >= limit {
			break
		}
		if entry.Type != codehost.EntryTypeFile || !IsDocumentable(entry.Name) {
			continue
		}
		candidates = append(candidates, entry)
	}
	return candidates
}
