package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/session"
)

// Styles contains lipgloss styles for the views
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
	Header  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Gray
			Width(12),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			Padding(0, 1),
	}
}

// SessionView is the text form of `auth status`.
type SessionView struct {
	State   session.State
	BaseURL string
	Backend string
	Now     time.Time
	Styles  Styles
}

// Render renders the session box.
func (v SessionView) Render() string {
	s := v.Styles
	var b strings.Builder

	b.WriteString(s.Title.Render("devquote session"))
	b.WriteString("\n\n")

	switch {
	case v.State.IsAuthenticated:
		b.WriteString(s.row("Status", s.Success.Render("signed in")))
		b.WriteString(s.row("User", fmt.Sprintf("%s (%s)", v.State.User.DisplayName(), v.State.User.Username)))
		if v.State.User.Email != "" {
			b.WriteString(s.row("Email", v.State.User.Email))
		}
		b.WriteString(s.row("Profiles", profileList(v.State.User.Profiles)))
		b.WriteString(s.row("Expires", expiry(*v.State.Tokens, v.Now, s)))
	case v.State.IsLoading:
		b.WriteString(s.row("Status", s.Warning.Render("restoring")))
	default:
		b.WriteString(s.row("Status", s.Muted.Render("signed out")))
	}

	if v.BaseURL != "" {
		b.WriteString(s.row("Backend", v.BaseURL))
	}
	if v.Backend != "" {
		b.WriteString(s.row("Storage", v.Backend))
	}
	if v.State.Error != "" {
		b.WriteString(s.row("Error", s.Error.Render(v.State.Error)))
	}

	return s.Border.Render(strings.TrimRight(b.String(), "\n"))
}

func (s Styles) row(label, value string) string {
	return s.Label.Render(label) + s.Value.Render(value) + "\n"
}

func profileList(profiles []domain.Profile) string {
	if len(profiles) == 0 {
		return "none"
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.ProfileType.String())
	}
	return strings.Join(names, ", ")
}

func expiry(tokens domain.TokenPair, now time.Time, s Styles) string {
	at, ok := tokens.ExpiresAt()
	if !ok {
		return s.Muted.Render("unknown")
	}
	left := at.Sub(now).Round(time.Second)
	if left <= 0 {
		return s.Warning.Render(fmt.Sprintf("expired %s ago (refreshed on next request)", (-left).String()))
	}
	return fmt.Sprintf("in %s", left)
}

// UserView renders a user profile with its permissions.
func UserView(u *domain.User, s Styles) string {
	if u == nil {
		return s.Muted.Render("no user")
	}
	var b strings.Builder
	b.WriteString(s.Title.Render(u.DisplayName()))
	b.WriteString("\n\n")
	b.WriteString(s.row("ID", fmt.Sprintf("%d", u.ID)))
	b.WriteString(s.row("Username", u.Username))
	b.WriteString(s.row("Email", u.Email))
	b.WriteString(s.row("Active", fmt.Sprintf("%t", u.Active)))

	var rows [][]string
	for _, p := range u.Profiles {
		if len(p.Permissions) == 0 {
			rows = append(rows, []string{p.ProfileType.String(), "", ""})
		}
		for _, perm := range p.Permissions {
			rows = append(rows, []string{p.ProfileType.String(), perm.Resource.Name, perm.Operation.Name})
		}
	}
	if len(rows) > 0 {
		b.WriteString("\n")
		b.WriteString(Table([]string{"PROFILE", "RESOURCE", "OPERATION"}, rows, s))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string, s Styles) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.Header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}
