package command

import (
	"fmt"
	"strings"

	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/service/ui"
)

type ResponseFormatter struct{}

func NewResponseFormatter() *ResponseFormatter {
	return &ResponseFormatter{}
}

func (f *ResponseFormatter) Title(title string) string {
	return ui.TitleStyle.Render(title) + "\n"
}

func (f *ResponseFormatter) Success(message string) string {
	return ui.SuccessStyle.Render("✓ "+message) + "\n"
}

func (f *ResponseFormatter) Error(err error) string {
	return ui.ErrorStyle.Render("✗ "+err.Error()) + "\n"
}

func (f *ResponseFormatter) Label(label, value string) string {
	return fmt.Sprintf("%s  ›  %s\n", ui.LabelStyle.Render(label), value)
}

func (f *ResponseFormatter) Usage(command string) string {
	return fmt.Sprintf("%s %s\n", ui.LabelStyle.Render("Usage:"), ui.UsageStyle.Render(command))
}

func (f *ResponseFormatter) List(items []string) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("› %s\n", item))
	}
	return sb.String()
}

func (f *ResponseFormatter) Tip(text string) string {
	return ui.DescStyle.Render("Tip: "+text) + "\n"
}

// MemoryLine renders one memory as "<short id> [Type] (importance) summary".
func (f *ResponseFormatter) MemoryLine(m core.Memory) string {
	text := m.Summary
	if text == "" {
		text = m.Content
	}
	return fmt.Sprintf("%s [%s] (%.2f) %s",
		ui.FlagStyle.Render(ShortID(m.ID.String())),
		m.Type.Label(),
		m.Importance,
		strings.Join(strings.Fields(text), " "),
	)
}

func (f *ResponseFormatter) Combine(sections ...string) string {
	return strings.Join(sections, "")
}

// ShortID is the first uuid group, enough to tell memories apart on screen.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
