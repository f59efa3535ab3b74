package services

import (
	"regexp"
	"strings"

	"compforge/models"
)

const (
	defaultComponentName        = "GeneratedComponent"
	defaultComponentDescription = "A generated component with basic functionality."
	maxDescriptionLength        = 500
)

var (
	jsxFenceRe    = regexp.MustCompile("(?s)```(?:jsx|tsx|javascript|typescript)?\n(.*?)\n```")
	cssFenceRe    = regexp.MustCompile("(?s)```css\n(.*?)\n```")
	declNameRe    = regexp.MustCompile(`(?:function|const)\s+(\w+)`)
	cssRuleLikeRe = regexp.MustCompile(`(?s)\.[\w-]+\s*\{.*?\}`)
)

// ParseArtifact turns raw model output into a usable component. It is a
// total function: every extraction step has a fallback, and the final
// fallback is a fixed placeholder artifact, so the result always has
// non-empty markup and styles.
func ParseArtifact(raw string) models.Component {
	jsx := extractJSX(raw)
	css := extractCSS(raw)

	if jsx == "" {
		jsx = fallbackJSXFromText(raw)
	}
	if css == "" {
		css = fallbackCSSFromText(raw)
	}

	name := extractComponentName(jsx)
	description := extractDescription(raw, name)

	if jsx == "" {
		jsx = defaultJSX(name)
	}
	if css == "" {
		css = defaultCSS()
	}

	return models.Component{
		JSX:         jsx,
		CSS:         css,
		Name:        name,
		Description: description,
	}
}

// extractJSX returns the inner text of the first fenced block tagged as a
// markup/script language, or empty if none exists.
func extractJSX(raw string) string {
	if m := jsxFenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// extractCSS returns the inner text of the first fenced css block.
func extractCSS(raw string) string {
	if m := cssFenceRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// fallbackJSXFromText treats the whole response as markup when the model
// skipped the fences but clearly emitted code.
func fallbackJSXFromText(raw string) string {
	if strings.Contains(raw, "function") || strings.Contains(raw, "const") {
		return raw
	}
	return ""
}

// fallbackCSSFromText scrapes `.selector { ... }` shaped rules out of an
// unfenced response and joins them into one stylesheet.
func fallbackCSSFromText(raw string) string {
	rules := cssRuleLikeRe.FindAllString(raw, -1)
	if len(rules) == 0 {
		return ""
	}
	return strings.Join(rules, "\n\n")
}

// extractComponentName picks the first identifier following a function or
// const declaration in the markup.
func extractComponentName(jsx string) string {
	if m := declNameRe.FindStringSubmatch(jsx); m != nil {
		return m[1]
	}
	return defaultComponentName
}

// extractDescription takes the first two prose lines of the response: not
// fenced, not empty, not declaration code. Capped at 500 runes.
func extractDescription(raw, name string) string {
	var prose []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.Contains(line, "```") ||
			strings.TrimSpace(line) == "" ||
			strings.Contains(line, "function") ||
			strings.Contains(line, "const") ||
			strings.Contains(line, "export") {
			continue
		}
		prose = append(prose, line)
		if len(prose) == 2 {
			break
		}
	}

	description := strings.TrimSpace(strings.Join(prose, " "))
	if description == "" {
		description = "A " + name + " component with modern styling and functionality."
	}
	if runes := []rune(description); len(runes) > maxDescriptionLength {
		description = string(runes[:maxDescriptionLength])
	}
	return description
}

func defaultJSX(name string) string {
	lower := strings.ToLower(name)
	return `function ` + name + `() {
  return (
    <div className="` + lower + `">
      <h2>Generated Component</h2>
      <p>This is a placeholder component. Please try a more specific prompt.</p>
      <button className="btn">Click me</button>
    </div>
  );
}

export default ` + name + `;`
}

func defaultCSS() string {
	return `.generated-component {
  padding: 20px;
  border-radius: 8px;
  background: #f8f9fa;
  border: 1px solid #e9ecef;
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
}

.generated-component h2 {
  margin: 0 0 16px 0;
  color: #343a40;
  font-size: 24px;
  font-weight: 600;
}

.generated-component p {
  margin: 0 0 20px 0;
  color: #6c757d;
  line-height: 1.5;
}

.btn {
  background: #007bff;
  color: white;
  border: none;
  padding: 12px 24px;
  border-radius: 6px;
  font-size: 16px;
  font-weight: 500;
  cursor: pointer;
  transition: background-color 0.2s ease;
}

.btn:hover {
  background: #0056b3;
}`
}
