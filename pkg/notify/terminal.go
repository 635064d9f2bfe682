package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var severityColors = map[Severity]lipgloss.Color{
	SeverityInfo:    lipgloss.Color("#0984E3"),
	SeveritySuccess: lipgloss.Color("#00B894"),
	SeverityWarning: lipgloss.Color("#FDCB6E"),
	SeverityError:   lipgloss.Color("#D63031"),
}

// TerminalSurface writes each mounted notification as a bordered banner.
// Terminals cannot retract output, so Unmount only forgets the banner.
type TerminalSurface struct {
	mutex   sync.Mutex
	writer  io.Writer
	mounted map[string]string
}

// NewTerminalSurface renders banners to writer.
func NewTerminalSurface(writer io.Writer) *TerminalSurface {
	return &TerminalSurface{writer: writer, mounted: make(map[string]string)}
}

// Mount renders the banner.
func (surface *TerminalSurface) Mount(notification Notification) {
	banner := RenderBanner(notification)
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	surface.mounted[notification.ID] = banner
	_, _ = fmt.Fprintln(surface.writer, banner)
}

// Unmount drops the banner from the mounted set.
func (surface *TerminalSurface) Unmount(notification Notification) {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	delete(surface.mounted, notification.ID)
}

// Mounted reports how many banners are currently live.
func (surface *TerminalSurface) Mounted() int {
	surface.mutex.Lock()
	defer surface.mutex.Unlock()
	return len(surface.mounted)
}

// RenderBanner formats notification as a dismissible terminal banner.
func RenderBanner(notification Notification) string {
	severity := notification.Severity.Normalize()
	color := severityColors[severity]
	iconStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	closeStyle := lipgloss.NewStyle().Faint(true)
	body := lipgloss.JoinHorizontal(lipgloss.Center,
		iconStyle.Render(severity.Glyph()),
		" ",
		notification.Message,
		"  ",
		closeStyle.Render("×"),
	)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(body)
}
