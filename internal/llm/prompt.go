package llm

import (
	"strings"
	"unicode/utf8"
)

// roleHints describes each role for the model, in vocabulary order.
var roleHints = [][2]string{
	{"company_name", "Company/startup name"},
	{"company_url", "Website URL"},
	{"description", "Long description"},
	{"short_description", "Brief description or tagline"},
	{"contact_email", "Contact email"},
	{"contact_name", "Contact person name"},
	{"category", "Category/industry"},
	{"tags", "Tags or keywords"},
	{"founded_year", "Year the company was founded"},
	{"logo_upload", "Logo file upload"},
	{"submit_button", "Submit button"},
}

// ExcerptHTML returns at most max characters from the start of the document.
func ExcerptHTML(html string, max int) string {
	if max <= 0 || utf8.RuneCountInString(html) <= max {
		return html
	}
	n := 0
	for i := range html {
		if n == max {
			return html[:i] + "..."
		}
		n++
	}
	return html
}

// BuildAnalyzePrompt is the fixed instruction sent with the page screenshot.
func BuildAnalyzePrompt(directoryName, htmlExcerpt string) string {
	var b strings.Builder
	b.WriteString("You are an expert web automation assistant. Analyze this screenshot and HTML of a startup directory submission page for \"")
	b.WriteString(directoryName)
	b.WriteString("\".\n\n")
	b.WriteString("Identify the form fields and return a JSON object mapping CSS selectors to the kind of data each field expects.\n\n")
	b.WriteString("Return ONLY a valid JSON object with this structure:\n")
	b.WriteString(`{
  "selectors": {
    "input[name='company_name']": "company_name",
    "textarea[name='description']": "description",
    "input[type='email']": "contact_email",
    "input[type='file']": "logo_upload",
    "button[type='submit']": "submit_button"
  }
}`)
	b.WriteString("\n\nAllowed roles:\n")
	for _, h := range roleHints {
		b.WriteString("- ")
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\n")
	}
	b.WriteString("\nUse the most specific CSS selector possible (prefer name, id, or data attributes over generic classes). ")
	b.WriteString("Only use the roles listed above. Omit fields you cannot identify.\n\n")
	b.WriteString("HTML excerpt:\n")
	b.WriteString(htmlExcerpt)
	return b.String()
}
