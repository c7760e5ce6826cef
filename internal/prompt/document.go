package prompt

import (
	"fmt"
	"strings"
)

// Document builds the prompt for a single document's extracted text.
// Pure: same inputs, same prompt.
func Document(title, extractedText string, style Style) string {
	var b strings.Builder
	if style.Name == "concise" {
		b.WriteString("Provide a concise summary of the following legislative document. ")
		b.WriteString("First create a brief headline (under 10 words), then a 2-3 sentence summary.\n\n")
	} else {
		b.WriteString("Summarize the following legislative document. ")
		b.WriteString("First create a headline, then a detailed summary.\n\n")
	}
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", truncate(title, 200))
	}
	b.WriteString("Document text:\n")
	b.WriteString(truncate(extractedText, style.MaxPromptLen-b.Len()-120))
	b.WriteString("\n\nFormat your response as:\nHEADLINE: [your headline here]\nSUMMARY: [your summary here]")
	return b.String()
}

// Headline builds the short standalone headline prompt used for
// legislation and meeting summaries.
func Headline(title string, style Style) string {
	return fmt.Sprintf("Create a concise headline (under 15 words) for: %s\nHeadline:", truncate(title, 300))
}
