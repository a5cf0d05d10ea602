// Package textgen turns source files into Markdown documentation.
package textgen

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces Markdown documentation for one source file.
// Implementations never fail: problems are reported inside the returned Markdown.
type Generator interface {
	Generate(ctx context.Context, source string, fileName string) string
}

// FailureMarkdown is the block stored when documentation could not be produced.
func FailureMarkdown(fileName string) string {
	return fmt.Sprintf("## ❌ Generation failed\n\nDocumentation could not be generated for **%s**.\n\nThe text generation service may be unavailable. Please try again later.", fileName)
}

const promptTemplate = `**ROLE**: You are an expert software engineer and technical writer.
**TASK**: Analyse the following source file named "%s" and write complete, professional technical documentation in Markdown.
**FORMAT**:
Structure the documentation with these sections:

### 📝 Summary
Two or three sentences describing the purpose and main responsibility of the file.

### ✨ Key features
A bulleted list of the most important functions, classes or components and their role. Be concise.

### 📦 Main dependencies
The most significant imports and what they are used for in this file.

### 🤔 How it works
The main logic or workflow of the code, for example how the functions interact.

### 💡 Possible improvements
One or two relevant suggestions.

**IMPORTANT**: Output only the Markdown content, with no introductory sentence.

--- BEGIN CODE ---
%s
--- END CODE ---
`

// BuildPrompt renders the documentation prompt for a file.
func BuildPrompt(source string, fileName string) string {
	return fmt.Sprintf(promptTemplate, fileName, strings.TrimRight(source, "\n"))
}
