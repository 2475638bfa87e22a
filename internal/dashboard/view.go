package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.BorderForeground(lipgloss.Color("62"))

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

const help = "s summarize · v viewpoints · n navigate · m minutes · l live · 1/2/3 fold · tab focus · c copy · q quit"

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Starting..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center, titleStyle.Render(" meetnav "), " ", m.badges())
	status := m.statusLine()
	footer := dimStyle.Render(help)

	bodyHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(status)-lipgloss.Height(footer), 6)
	leftWidth := max(m.width*55/100, 20)
	rightWidth := max(m.width-leftWidth, 20)

	left := m.transcriptPane(leftWidth, bodyHeight)
	right := m.panelColumn(rightWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, footer)
}

func (m Model) badges() string {
	var parts []string
	switch {
	case m.stopped:
		parts = append(parts, dimStyle.Render("● stopped"))
	case m.attached:
		parts = append(parts, okStyle.Render("● capturing"))
	default:
		parts = append(parts, warnStyle.Render("● searching"))
	}
	if m.deps.Live != nil && m.deps.Live.Enabled() {
		parts = append(parts, okStyle.Render("LIVE"))
	}
	parts = append(parts, dimStyle.Render(fmt.Sprintf("%d lines", len(m.lines))))
	return strings.Join(parts, "  ")
}

func (m Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return errStyle.Render("! " + m.status)
	}
	return dimStyle.Render(m.status)
}

// frame returns the inner size of a pane rendered at the given outer size.
func frame(width, height int) (int, int) {
	return max(width-paneStyle.GetHorizontalFrameSize(), 1), max(height-paneStyle.GetVerticalFrameSize(), 1)
}

func (m Model) transcriptPane(width, height int) string {
	w, h := frame(width, height)
	rows := h - 1
	lines := m.lines
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Transcript"))
	for _, l := range lines {
		b.WriteByte('\n')
		b.WriteString(truncate(l, w))
	}
	if len(m.lines) == 0 {
		b.WriteString("\n" + dimStyle.Render("No captions yet."))
	}
	return paneStyle.Width(w).Height(h).Render(b.String())
}

func (m Model) panelColumn(width, height int) string {
	expanded := 0
	for _, p := range m.panels {
		if !p.collapsed {
			expanded++
		}
	}
	// A collapsed pane is its title plus the border.
	collapsedHeight := 1 + paneStyle.GetVerticalFrameSize()
	free := height - (panelCount-expanded)*collapsedHeight
	each := free
	if expanded > 0 {
		each = free / expanded
	}

	panes := make([]string, 0, panelCount)
	for i := range panelCount {
		h := collapsedHeight
		if !m.panels[i].collapsed {
			h = max(each, collapsedHeight)
		}
		panes = append(panes, m.panelPane(i, width, h))
	}
	return lipgloss.JoinVertical(lipgloss.Left, panes...)
}

func (m Model) panelPane(i, width, height int) string {
	p := m.panels[i]
	w, h := frame(width, height)

	title := fmt.Sprintf("%d %s", i+1, panelTitles[i])
	switch {
	case p.busy:
		title += dimStyle.Render("  thinking...")
	case !p.updated.IsZero():
		title += dimStyle.Render("  " + p.updated.Format("15:04:05"))
	}
	content := headerStyle.Render(title)
	if !p.collapsed {
		body := p.content
		if body == "" {
			body = dimStyle.Render("Nothing yet.")
		}
		content += "\n" + body
	}

	style := paneStyle
	if m.focus == i {
		style = focusedPaneStyle
	}
	return style.Width(w).Height(h).MaxHeight(height).Render(content)
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
