package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifactExtractsFencedBlocks(t *testing.T) {
	jsx := "function PrimaryButton({ label }) {\n  return <button className=\"primary\">{label}</button>;\n}"
	css := ".primary {\n  background: blue;\n}"
	raw := "Here is your button component.\nIt supports a label prop.\n\n```jsx\n" + jsx + "\n```\n\n```css\n" + css + "\n```\n"

	component := ParseArtifact(raw)

	assert.Equal(t, jsx, component.JSX)
	assert.Equal(t, css, component.CSS)
	assert.Equal(t, "PrimaryButton", component.Name)
	assert.Equal(t, "Here is your button component. It supports a label prop.", component.Description)
}

func TestParseArtifactTSXAndTypescriptFences(t *testing.T) {
	for _, lang := range []string{"tsx", "typescript", "javascript", ""} {
		raw := "```" + lang + "\nconst Card = () => <div />;\n```\n"
		component := ParseArtifact(raw)
		assert.Equal(t, "const Card = () => <div />;", component.JSX, "lang %q", lang)
		assert.Equal(t, "Card", component.Name)
	}
}

func TestParseArtifactUsesFirstFenceOnly(t *testing.T) {
	raw := "```jsx\nfunction First() {}\n```\n```jsx\nfunction Second() {}\n```\n"
	component := ParseArtifact(raw)
	assert.Equal(t, "function First() {}", component.JSX)
}

func TestParseArtifactWholeTextFallback(t *testing.T) {
	raw := "function Widget() {\n  return <div className=\"widget\" />;\n}"
	component := ParseArtifact(raw)
	assert.Equal(t, raw, component.JSX)
	assert.Equal(t, "Widget", component.Name)
}

func TestParseArtifactScrapesRuleLikeCSS(t *testing.T) {
	raw := "function Box() { return <div />; }\n\n.box {\n  padding: 4px;\n}\n\n.box-title {\n  font-weight: bold;\n}"
	component := ParseArtifact(raw)
	assert.Contains(t, component.CSS, ".box {")
	assert.Contains(t, component.CSS, ".box-title {")
}

func TestParseArtifactEmptyInputYieldsPlaceholder(t *testing.T) {
	component := ParseArtifact("I could not produce anything useful.")

	assert.Equal(t, defaultComponentName, component.Name)
	assert.NotEmpty(t, component.JSX)
	assert.NotEmpty(t, component.CSS)
	assert.Contains(t, component.JSX, "function GeneratedComponent()")
	assert.Contains(t, component.CSS, ".generated-component")
}

func TestParseArtifactDefaultName(t *testing.T) {
	raw := "```jsx\nreturn <div />;\n```\n"
	component := ParseArtifact(raw)
	assert.Equal(t, defaultComponentName, component.Name)
}

func TestParseArtifactDescriptionDefaultsToTemplate(t *testing.T) {
	raw := "```jsx\nfunction Toggle() {}\n```\n"
	component := ParseArtifact(raw)
	assert.Equal(t, "A Toggle component with modern styling and functionality.", component.Description)
}

func TestParseArtifactDescriptionCapped(t *testing.T) {
	long := strings.Repeat("very long description text ", 40)
	raw := long + "\nsecond line of prose\n```jsx\nfunction Long() {}\n```\n"
	component := ParseArtifact(raw)
	require.LessOrEqual(t, utf8.RuneCountInString(component.Description), maxDescriptionLength)
}

func TestParseArtifactDescriptionCapDoesNotSplitRunes(t *testing.T) {
	long := strings.Repeat("héllo wörld déscription ", 40)
	raw := long + "\n```jsx\nfunction Intl() {}\n```\n"
	component := ParseArtifact(raw)

	assert.Equal(t, maxDescriptionLength, utf8.RuneCountInString(component.Description))
	assert.True(t, utf8.ValidString(component.Description))
}

func TestParseArtifactSkipsCodeLinesInDescription(t *testing.T) {
	raw := "const x = 1;\nexport default Thing;\nA tidy card layout.\nWith a subtle shadow.\n```jsx\nfunction Thing() {}\n```\n"
	component := ParseArtifact(raw)
	assert.Equal(t, "A tidy card layout. With a subtle shadow.", component.Description)
}
