// Package nav derives the navigation bar from a session. Build is a pure
// function: the menu holds no state of its own and is rebuilt per render.
package nav

import (
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/session"
)

// Entry is one link in the navigation bar.
type Entry struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// ControlKind selects the account control shown at the end of the bar.
type ControlKind string

const (
	// ControlNone is shown while the session is loading, so neither
	// "Sign in" nor "Sign out" flashes before the state is known.
	ControlNone    ControlKind = "none"
	ControlSignIn  ControlKind = "sign-in"
	ControlSignOut ControlKind = "sign-out"
)

// Control is the sign-in / sign-out area.
type Control struct {
	Kind        ControlKind `json:"kind"`
	Path        string      `json:"path,omitempty"`
	ProfilePath string      `json:"profilePath,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	AvatarURL   string      `json:"avatarUrl,omitempty"`
}

// Menu is the full navigation bar.
type Menu struct {
	Entries []Entry `json:"entries"`
	Control Control `json:"control"`
}

var publicEntries = []Entry{
	{Label: "Home", Path: model.RouteLanding},
	{Label: "Projects", Path: model.RouteProjects},
	{Label: "Contact Us", Path: model.RouteContact},
}

// Build returns the menu for s. The Dashboard entry appears only for a
// resolved admin session; it stays hidden while loading.
func Build(s session.Session) Menu {
	entries := make([]Entry, len(publicEntries), len(publicEntries)+1)
	copy(entries, publicEntries)

	if s.IsAdmin() {
		entries = append(entries, Entry{Label: "Dashboard", Path: model.RouteAdminDashboard})
	}

	return Menu{Entries: entries, Control: control(s)}
}

func control(s session.Session) Control {
	switch {
	case !s.Resolved():
		return Control{Kind: ControlNone}
	case s.SignedIn():
		name := s.Identity.DisplayName
		if name == "" {
			name = s.Identity.Email
		}
		return Control{
			Kind:        ControlSignOut,
			Path:        model.RouteLogout,
			ProfilePath: model.RouteProfile,
			DisplayName: name,
			AvatarURL:   s.Identity.AvatarURL,
		}
	default:
		return Control{Kind: ControlSignIn, Path: model.RouteLogin}
	}
}

// Has reports whether the menu links to path.
func (m Menu) Has(path string) bool {
	for _, e := range m.Entries {
		if e.Path == path {
			return true
		}
	}
	return false
}
