package auth

import (
	"net/http"
	"net/url"

	"github.com/odyssey-erp/profitboard/internal/platform/httpx"
	"github.com/odyssey-erp/profitboard/internal/shared"
)

// RequireAuthenticated blocks requests whose session carries no verified
// identity. Browsers are sent to the login form, API callers get a 401 problem.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.SessionFromContext(r.Context()).Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		if httpx.WantsJSON(r) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		target := "/auth/login"
		if r.Method == http.MethodGet && r.URL.RequestURI() != "/" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}
