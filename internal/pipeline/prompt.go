package pipeline

import "fmt"

// rewritePrompt wraps the original text in the documentation style brief sent
// to the model.
func rewritePrompt(originalText string) string {
	return fmt.Sprintf(`Transform the following documentation into Google Cloud Platform (GCP) style documentation.

GCP Documentation Style Guidelines:
1. Use clear, concise language
2. Structure with proper headings and subheadings
3. Include code examples with syntax highlighting
4. Add step-by-step instructions where appropriate
5. Use consistent formatting and spacing
6. Include relevant links and references
7. Make it scannable with bullet points and numbered lists
8. Use professional, technical tone
9. Include prerequisites and requirements sections
10. Add troubleshooting sections when relevant

Original Documentation:
%s

Please transform this into clean, professional GCP-style documentation:`, originalText)
}
