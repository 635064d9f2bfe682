package pageguard

import (
	"context"

	"github.com/tyemirov/tsession/pkg/sessionclient"
	"go.uber.org/zap"
)

// Session is the part of sessionclient.Client the guard drives.
type Session interface {
	RequireAuth() bool
	CheckSession(ctx context.Context) bool
	ClearSession()
	RedirectToLogin()
	CurrentUser() sessionclient.UserProfile
	LoginPath() string
}

// Locator reports the page being loaded.
type Locator interface {
	CurrentPath() string
}

// ProfileView renders the signed-in user on the page.
type ProfileView interface {
	ShowProfile(card ProfileCard)
}

// Outcome is the result of one page-load check.
type Outcome int

const (
	// OutcomeSkipped means the login page was loaded and nothing was checked.
	OutcomeSkipped Outcome = iota
	// OutcomeRedirected means no local session existed.
	OutcomeRedirected
	// OutcomeVerified means the backend confirmed the session.
	OutcomeVerified
	// OutcomeRejected means verification failed and the session was dropped.
	OutcomeRejected
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRedirected:
		return "redirected"
	case OutcomeVerified:
		return "verified"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Guard runs the page-load session check.
type Guard struct {
	session Session
	locator Locator
	view    ProfileView
	logger  *zap.Logger
}

// New builds a Guard. A nil view skips profile rendering.
func New(session Session, locator Locator, view ProfileView, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{session: session, locator: locator, view: view, logger: logger}
}

// OnPageLoad checks the session for the current page. Local decisions are
// made before it returns; backend verification runs in the background. The
// returned channel receives exactly one Outcome and is then closed.
func (guard *Guard) OnPageLoad(ctx context.Context) <-chan Outcome {
	outcomes := make(chan Outcome, 1)

	path := guard.locator.CurrentPath()
	if path == guard.session.LoginPath() {
		outcomes <- OutcomeSkipped
		close(outcomes)
		return outcomes
	}
	if !guard.session.RequireAuth() {
		guard.logger.Info("no session on page load",
			zap.String("code", "page_guard.unauthenticated"),
			zap.String("path", path))
		guard.session.RedirectToLogin()
		outcomes <- OutcomeRedirected
		close(outcomes)
		return outcomes
	}

	go func() {
		defer close(outcomes)
		if !guard.session.CheckSession(ctx) {
			guard.logger.Warn("session verification failed",
				zap.String("code", "page_guard.rejected"),
				zap.String("path", path))
			guard.session.ClearSession()
			guard.session.RedirectToLogin()
			outcomes <- OutcomeRejected
			return
		}
		if guard.view != nil {
			guard.view.ShowProfile(NewProfileCard(guard.session.CurrentUser()))
		}
		outcomes <- OutcomeVerified
	}()
	return outcomes
}
