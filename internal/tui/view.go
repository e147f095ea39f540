package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderView() string {
	sections := []string{
		m.renderHeader(),
		m.renderRecording(),
	}

	if msg := m.renderMessages(); msg != "" {
		sections = append(sections, msg)
	}

	if m.panelVisible {
		if m.history != nil {
			sections = append(sections, m.renderRecent())
		}
		sections = append(sections, m.renderHelp())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	exited := m.current.Exited != nil
	header := fmt.Sprintf(
		" screenrec │ %s │ Elapsed: %s │ %s ",
		recordingBadge(m.recording, exited),
		formatDuration(m.Elapsed()),
		m.platform,
	)
	return titleStyle.Width(m.width).Render(header)
}

// =============================================================================
// Recording Section
// =============================================================================

func (m Model) renderRecording() string {
	lines := []string{sectionStyle.Render("Recording")}

	sess := m.current.Session
	if !m.recording || sess == nil {
		lines = append(lines,
			mutedText.Render("Not recording. Press r or space to start."),
			field("Output dir", m.outputDir),
		)
		return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	}

	lines = append(lines,
		field("Output", sess.OutputPath),
		field("PID", fmt.Sprintf("%d", sess.Pid)),
		field("Session", shortID(sess.ID)),
		field("Elapsed", formatDuration(m.Elapsed())),
	)

	if p := m.current.Progress; p != nil {
		lines = append(lines,
			field("Frames", formatNumber(p.Frame)),
			field("FPS", fmt.Sprintf("%.1f", p.FPS)),
			lipgloss.JoinHorizontal(lipgloss.Left, fieldLabelStyle.Render("Speed:"), speedLabel(p.Speed)),
			field("Size", formatBytes(p.TotalSize)),
			lipgloss.JoinHorizontal(lipgloss.Left,
				fieldLabelStyle.Render("Dropped:"),
				dropStyle(p.DropFrames).Render(formatNumber(p.DropFrames)),
			),
		)
	} else {
		lines = append(lines, dimText.Render("Waiting for ffmpeg progress..."))
	}

	if ex := m.current.Exited; ex != nil {
		lines = append(lines, warnText.Render(
			fmt.Sprintf("ffmpeg exited (code %d). Press s to clear.", ex.ExitCode)))
	}

	return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderMessages() string {
	var lines []string
	if m.lastError != "" {
		lines = append(lines, errText.Render("✗ "+m.lastError))
	}
	if m.lastNotice != "" {
		lines = append(lines, infoText.Render("• "+m.lastNotice))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// Recent Recordings
// =============================================================================

func (m Model) renderRecent() string {
	content := []string{sectionStyle.Render("Recent Recordings")}
	if m.recentCount == 0 {
		content = append(content, mutedText.Render("No recordings yet."))
	} else {
		content = append(content, m.recent.View())
	}
	return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, content...))
}

// =============================================================================
// Help
// =============================================================================

func (m Model) renderHelp() string {
	lines := []string{
		sectionStyle.Render("Keys"),
		keyHint("r / space", "start or stop recording"),
		keyHint("s        ", "stop recording"),
		keyHint("esc      ", "hide this panel"),
		keyHint("? / h    ", "show this panel"),
		keyHint("q        ", "stop recording and quit"),
	}
	if m.controlAddr != "" {
		lines = append(lines, dimText.Render("Control API: http://"+m.controlAddr+"/api/recording/status"))
	}
	return panelStyle.Width(m.width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"r: record/stop",
		"q: quit",
	}
	if !m.panelVisible {
		shortcuts = append(shortcuts, "?: help")
	}

	left := dimText.Render(strings.Join(shortcuts, " │ "))
	right := dimText.Render("screenrec " + m.version)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// =============================================================================
// Helpers
// =============================================================================

func baseName(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
