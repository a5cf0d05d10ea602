// Package summarizer builds an offline Markdown overview of a source file from
// line-prefix and keyword patterns. It never calls the network.
package summarizer

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxImports      = 10
	maxDeclarations = 10

	// ErrorMarkdown is returned when summarizing fails unexpectedly.
	ErrorMarkdown = "# Error\n\nThe basic documentation could not be generated for this file."
)

var (
	importPattern      = regexp.MustCompile(`^\s*(import|from|require)`)
	declarationPattern = regexp.MustCompile(`^\s*(export\s+)?(async\s+)?(function|class|const|let)\s+[\w\s=()>\[\]{}]+[:{]`)
	repeatedSpace      = regexp.MustCompile(`\s{2,}`)

	featureChecks = []struct {
		pattern *regexp.Regexp
		bullet  string
	}{
		{regexp.MustCompile(`\basync\b`), "- ✅ **Asynchronous code**: uses `async`/`await`."},
		{regexp.MustCompile(`\bexport\b`), "- ✅ **Exported module**: contains `export` statements."},
		{regexp.MustCompile(`\bclass\b`), "- ✅ **Object oriented**: declares a `class`."},
		{regexp.MustCompile(`\binterface\b`), "- ✅ **Interfaces**: declares an `interface`."},
		{regexp.MustCompile(`\btype\b`), "- ✅ **Type declarations**: uses `type`."},
	}
)

const noFeaturesBullet = "- No specific feature detected by the basic analysis."

// Summarize renders statistics, imports, declarations and detected features of
// source as Markdown. Identical input always yields identical output.
func Summarize(source string, language string) (markdown string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			markdown = ErrorMarkdown
		}
	}()

	lines := splitLines(source)
	imports := selectImports(lines)
	declarations := selectDeclarations(lines)
	fence := strings.ToLower(strings.TrimSpace(language))

	var doc strings.Builder
	doc.WriteString("# File documentation\n\n")

	doc.WriteString("## 📊 Statistics\n")
	fmt.Fprintf(&doc, "- **Lines of code:** %d\n", len(lines))
	fmt.Fprintf(&doc, "- **Language:** %s\n\n", language)

	if len(imports) > 0 {
		doc.WriteString("## 📦 Dependencies and imports\n\n")
		writeFenced(&doc, fence, imports)
	}

	if len(declarations) > 0 {
		doc.WriteString("## 🔧 Main functions and components\n\n")
		writeFenced(&doc, fence, declarations)
	}

	doc.WriteString("## 💡 Detected features\n\n")
	detected := 0
	for _, check := range featureChecks {
		if check.pattern.MatchString(source) {
			doc.WriteString(check.bullet)
			doc.WriteString("\n")
			detected++
		}
	}
	if detected == 0 {
		doc.WriteString(noFeaturesBullet)
		doc.WriteString("\n")
	}

	doc.WriteString("\n## 📝 Summary\n\n")
	fmt.Fprintf(&doc, "This %s file contains %d lines of code.", language, len(lines))
	if len(imports) > 0 {
		fmt.Fprintf(&doc, " It appears to import %d dependencies.", len(imports))
	}
	if len(declarations) > 0 {
		fmt.Fprintf(&doc, " It defines at least %d main functions or components.", len(declarations))
	}
	doc.WriteString("\n")

	return doc.String()
}

// splitLines treats empty input as zero lines.
func splitLines(source string) []string {
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}

func selectImports(lines []string) []string {
	var imports []string
	for _, line := range lines {
		if len(imports) == maxImports {
			break
		}
		if importPattern.MatchString(line) {
			imports = append(imports, strings.TrimRight(line, "\r"))
		}
	}
	return imports
}

func selectDeclarations(lines []string) []string {
	var declarations []string
	for _, line := range lines {
		if len(declarations) == maxDeclarations {
			break
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || !declarationPattern.MatchString(line) {
			continue
		}
		declarations = append(declarations, repeatedSpace.ReplaceAllString(trimmed, " "))
	}
	return declarations
}

func writeFenced(doc *strings.Builder, fence string, lines []string) {
	doc.WriteString("```")
	doc.WriteString(fence)
	doc.WriteString("\n")
	doc.WriteString(strings.Join(lines, "\n"))
	doc.WriteString("\n```\n\n")
}
