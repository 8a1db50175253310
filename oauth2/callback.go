package oauth2

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"

	ra "github.com/panyam/recipeauth"
)

const flashKey = "flash"

// Completer finishes a redirect sign-in; identity.LocalClient implements it
type Completer interface {
	CompleteRedirect(ctx context.Context, state, code string) (*ra.User, error)
}

// CallbackHandler serves the provider's redirect back to us. The outcome is
// flashed through the session and shown on the done page.
type CallbackHandler struct {
	Completer Completer
	Session   *scs.SessionManager
	Logger    *slog.Logger

	// OnComplete, if set, is called once per callback with the outcome
	OnComplete func(user *ra.User, err error)
}

func NewCallbackHandler(completer Completer) *CallbackHandler {
	return (&CallbackHandler{Completer: completer}).EnsureDefaults()
}

func (h *CallbackHandler) EnsureDefaults() *CallbackHandler {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Session == nil {
		h.Session = scs.New()
		h.Session.Lifetime = 10 * time.Minute
		h.Session.Cookie.Name = "recipeauth_callback"
		h.Session.Cookie.SameSite = http.SameSiteLaxMode
	}
	return h
}

// Handler returns a router serving /auth/{provider}/callback and /auth/done
func (h *CallbackHandler) Handler() http.Handler {
	h.EnsureDefaults()
	r := mux.NewRouter()
	r.HandleFunc("/auth/{provider}/callback", h.handleCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/done", h.handleDone).Methods(http.MethodGet)
	return h.Session.LoadAndSave(r)
}

func (h *CallbackHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := mux.Vars(r)["provider"]
	query := r.URL.Query()

	var user *ra.User
	var err error
	if providerErr := query.Get("error"); providerErr != "" {
		err = fmt.Errorf("%s sign-in was not completed: %s", provider, providerErr)
	} else {
		user, err = h.Completer.CompleteRedirect(ctx, query.Get("state"), query.Get("code"))
	}

	if err != nil {
		h.Logger.WarnContext(ctx, "redirect sign-in failed", "provider", provider, "err", err)
		h.Session.Put(ctx, flashKey, "Sign-in failed. Please try again.")
	} else {
		h.Logger.InfoContext(ctx, "redirect sign-in completed", "provider", provider, "user_id", user.ID)
		if user.DisplayName != "" {
			h.Session.Put(ctx, flashKey, fmt.Sprintf("Signed in as %s.", user.DisplayName))
		} else {
			h.Session.Put(ctx, flashKey, "Signed in.")
		}
	}
	if h.OnComplete != nil {
		h.OnComplete(user, err)
	}
	http.Redirect(w, r, "/auth/done", http.StatusFound)
}

func (h *CallbackHandler) handleDone(w http.ResponseWriter, r *http.Request) {
	msg := h.Session.PopString(r.Context(), flashKey)
	if msg == "" {
		msg = "Nothing to report."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><p>%s</p><p>You can close this window.</p>", html.EscapeString(msg))
}
