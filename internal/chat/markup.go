package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/zombor/paragon/internal/receipt"
)

// WordWrap is the column at which rendered replies wrap
const WordWrap = 80

// Markup turns an assistant reply into terminal output
type Markup interface {
	Render(text string) (string, error)
}

// PlainMarkup returns replies unchanged
type PlainMarkup struct{}

func (PlainMarkup) Render(text string) (string, error) {
	return text, nil
}

// MarkdownMarkup renders replies as markdown with glamour
type MarkdownMarkup struct {
	renderer *glamour.TermRenderer
}

// NewMarkdownMarkup returns a glamour renderer styled for theme
func NewMarkdownMarkup(theme receipt.Theme) (*MarkdownMarkup, error) {
	style := "light"
	if theme == receipt.ThemeDark {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(WordWrap),
	)
	if err != nil {
		return nil, fmt.Errorf("creating markdown renderer: %w", err)
	}
	return &MarkdownMarkup{renderer: r}, nil
}

func (m *MarkdownMarkup) Render(text string) (string, error) {
	out, err := m.renderer.Render(text)
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}
