package summarizer

import (
	"context"
	"path"
	"strings"

	"github.com/MarcoPoloResearchLab/autodocs/backend/internal/textgen"
)

var languageByExtension = map[string]string{
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".py":   "Python",
	".go":   "Go",
	".java": "Java",
	".cs":   "CSharp",
	".rb":   "Ruby",
	".php":  "PHP",
	".rs":   "Rust",
	".md":   "Markdown",
	".json": "JSON",
	".yml":  "YAML",
	".yaml": "YAML",
}

// LanguageForFile guesses a display language from the file extension.
func LanguageForFile(fileName string) string {
	extension := strings.ToLower(path.Ext(fileName))
	if language, ok := languageByExtension[extension]; ok {
		return language
	}
	if extension != "" {
		return strings.TrimPrefix(extension, ".")
	}
	return "text"
}

// Generator serves Summarize through the textgen.Generator contract.
type Generator struct{}

var _ textgen.Generator = Generator{}

// Generate ignores ctx; summarizing is local and synchronous.
func (Generator) Generate(_ context.Context, source string, fileName string) string {
	return Summarize(source, LanguageForFile(fileName))
}
