package pageguard

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tyemirov/tsession/pkg/sessionclient"
)

const avatarServiceURL = "https://ui-avatars.com/api/"

// ProfileCard is what a page shows about the signed-in user.
type ProfileCard struct {
	DisplayName string
	AvatarURL   string
	Initials    string
}

// NewProfileCard derives the card from a profile. Without an avatar the
// image falls back to a generated one.
func NewProfileCard(profile sessionclient.UserProfile) ProfileCard {
	name := profile.DisplayName()
	avatar := profile.AvatarURL()
	if avatar == "" {
		avatar = fallbackAvatarURL(name)
	}
	return ProfileCard{
		DisplayName: name,
		AvatarURL:   avatar,
		Initials:    initials(name),
	}
}

func fallbackAvatarURL(name string) string {
	encodedName := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return avatarServiceURL + "?name=" + encodedName + "&background=6c5ce7&color=fff"
}

func initials(name string) string {
	runes := []rune(name)
	if len(runes) > 2 {
		runes = runes[:2]
	}
	return strings.ToUpper(string(runes))
}

var (
	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#6C5CE7")).
			Padding(0, 1)
	nameStyle = lipgloss.NewStyle().Bold(true)
	urlStyle  = lipgloss.NewStyle().Faint(true)
)

// TerminalProfileView prints the card as a one-line header.
type TerminalProfileView struct {
	writer io.Writer
}

// NewTerminalProfileView writes cards to writer.
func NewTerminalProfileView(writer io.Writer) *TerminalProfileView {
	return &TerminalProfileView{writer: writer}
}

// ShowProfile implements ProfileView.
func (view *TerminalProfileView) ShowProfile(card ProfileCard) {
	_, _ = fmt.Fprintf(view.writer, "%s %s %s\n",
		badgeStyle.Render(card.Initials),
		nameStyle.Render(card.DisplayName),
		urlStyle.Render(card.AvatarURL))
}
