package guard

import (
	"encoding/json"
	"net/http"

	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/session"
)

// JSONResponder answers API requests. It never redirects; an API client gets
// a status code and a JSON error body instead.
type JSONResponder struct{}

func (JSONResponder) Unauthenticated(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusUnauthorized, "authentication required")
}

func (JSONResponder) Denied(w http.ResponseWriter, _ *http.Request, _ session.Session) {
	writeJSONError(w, http.StatusForbidden, "access denied")
}

func (JSONResponder) Loading(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "1")
	writeJSONError(w, http.StatusServiceUnavailable, "session is still loading")
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// PageRenderer draws a full HTML page with the given status.
type PageRenderer interface {
	RenderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any)
}

// Page names PageResponder asks its renderer for.
const (
	PageDenied  = "denied"
	PageLoading = "loading"
)

// PageResponder answers browser requests: a redirect to the login route for
// anonymous visitors, and rendered pages for the other outcomes.
type PageResponder struct {
	Pages PageRenderer
}

func (p PageResponder) Unauthenticated(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, model.RouteLogin, http.StatusSeeOther)
}

func (p PageResponder) Denied(w http.ResponseWriter, r *http.Request, s session.Session) {
	p.Pages.RenderPage(w, r, http.StatusForbidden, PageDenied, s)
}

// Loading asks the browser to retry shortly; by then the session has settled.
func (p PageResponder) Loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Refresh", "1")
	p.Pages.RenderPage(w, r, http.StatusServiceUnavailable, PageLoading, nil)
}
