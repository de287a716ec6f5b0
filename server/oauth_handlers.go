package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/mubarokah/id-server/auth"
	"github.com/mubarokah/id-server/auth/sessions"
	"github.com/mubarokah/id-server/oauth2"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Authorize begins the authorization code flow. Errors that occur before the
// redirect URI is validated are rendered directly; everything later is
// carried back to the client via redirect with the original state.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := parseAuthorizeRequest(r)

		userID, err := s.authenticator.UserFromRequest(r)
		if err != nil || params.Prompt == oauth2.PromptLogin {
			// Authentication is delegated to the account frontend; an
			// unauthenticated request (or an explicit prompt=login) is
			// bounced back to it.
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeUnauthenticated, "user authentication required"))
			return
		}

		result, err := s.auth.Authorize(params, userID)
		if err != nil {
			s.writeAuthorizeError(w, r, err)
			return
		}

		if result.Code != "" {
			redirectWithParams(w, r, result.RedirectURI, url.Values{
				"code":  {result.Code},
				"state": {result.State},
			})
			return
		}

		// Consent needed: hand the pending authorization to the consent
		// frontend, which calls back on /oauth/authorize/decision.
		writeJSON(w, http.StatusOK, map[string]any{
			"consent_required": true,
			"session_id":       result.SessionID,
			"scope":            result.Scopes.String(),
			"state":            result.State,
		})
	}
}

// Decision completes a pending authorization with the user's approve/deny
// choice.
func (s *Server) Decision() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "failed to parse form data"))
			return
		}

		userID, err := s.authenticator.UserFromRequest(r)
		if err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeUnauthenticated, "user authentication required"))
			return
		}

		sessionID := r.FormValue("session_id")
		decision := r.FormValue("decision")

		switch decision {
		case "approve":
			result, err := s.auth.Approve(sessionID, userID)
			if err != nil {
				s.writeAuthorizeError(w, r, err)
				return
			}
			redirectWithParams(w, r, result.RedirectURI, url.Values{
				"code":  {result.Code},
				"state": {result.State},
			})
		case "deny":
			denial, err := s.auth.Deny(sessionID, userID)
			if err != nil {
				s.writeAuthorizeError(w, r, err)
				return
			}
			s.redirectError(w, r, denial)
		default:
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "decision must be approve or deny"))
		}
	}
}

// Token exchanges a code, refresh token or client credentials for tokens.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenReq, oerr := parseTokenRequest(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}

		s.metrics.TokenRequests.WithLabelValues(string(tokenReq.GrantType)).Inc()

		tokenResponse, err := s.auth.Token(tokenReq)
		if err != nil {
			oerr := oauth2.AsError(err)
			if oerr.Code == oauth2.ErrCodeServerError {
				s.logger.Error().Err(err).Msg("token exchange failed")
			}
			s.metrics.TokenDenials.WithLabelValues(string(oerr.Code)).Inc()
			writeOAuthError(w, oerr)
			return
		}

		s.metrics.TokensIssued.WithLabelValues(string(tokenReq.GrantType)).Inc()

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// Revoke revokes an access or refresh token for an authenticated client.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenReq, oerr := parseClientAuth(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}

		tokenValue := r.FormValue("token")
		if tokenValue == "" {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "token parameter is required"))
			return
		}

		if err := s.auth.Revoke(tokenReq, tokenValue, r.FormValue("token_type_hint")); err != nil {
			writeOAuthError(w, oauth2.AsError(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Introspect reports token metadata for an authenticated client.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenReq, oerr := parseClientAuth(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}

		tokenValue := r.FormValue("token")
		if tokenValue == "" {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "token parameter is required"))
			return
		}

		introspection, err := s.auth.Introspect(tokenReq, tokenValue)
		if err != nil {
			writeOAuthError(w, oauth2.AsError(err))
			return
		}
		writeJSON(w, http.StatusOK, introspection)
	}
}

func parseAuthorizeRequest(r *http.Request) *auth.AuthorizeRequest {
	q := r.URL.Query()
	return &auth.AuthorizeRequest{
		ResponseType:        oauth2.ResponseType(q.Get("response_type")),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Prompt:              oauth2.PromptType(q.Get("prompt")),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: oauth2.CodeMethodType(q.Get("code_challenge_method")),
	}
}

// parseTokenRequest reads the form-encoded token request. Client credentials
// may come as HTTP Basic auth or body parameters; Basic wins when both are
// present.
func parseTokenRequest(r *http.Request) (*auth.TokenRequest, *oauth2.Error) {
	req, oerr := parseClientAuth(r)
	if oerr != nil {
		return nil, oerr
	}

	req.GrantType = oauth2.GrantType(r.FormValue("grant_type"))
	req.Code = r.FormValue("code")
	req.RedirectURI = r.FormValue("redirect_uri")
	req.CodeVerifier = r.FormValue("code_verifier")
	req.RefreshToken = r.FormValue("refresh_token")
	req.Scope = r.FormValue("scope")
	return req, nil
}

func parseClientAuth(r *http.Request) (*auth.TokenRequest, *oauth2.Error) {
	if err := r.ParseForm(); err != nil {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "failed to parse form data")
	}

	req := &auth.TokenRequest{
		ClientID:     r.PostFormValue("client_id"),
		ClientSecret: r.PostFormValue("client_secret"),
	}
	if id, secret, ok := r.BasicAuth(); ok {
		req.ClientID = id
		req.ClientSecret = secret
	}
	if req.ClientID == "" {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "client_id is required")
	}
	return req, nil
}

// writeAuthorizeError routes an authorize-flow error to the right channel:
// redirect for errors raised after redirect URI validation, a direct
// response otherwise.
func (s *Server) writeAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	if redirect, ok := err.(*auth.RedirectError); ok {
		s.redirectError(w, r, redirect)
		return
	}
	if errors.Is(err, sessions.ErrNotFound) || errors.Is(err, auth.ErrSessionExpired) || errors.Is(err, auth.ErrUserMismatch) {
		writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "the authorization session is invalid or expired"))
		return
	}
	oerr := oauth2.AsError(err)
	if oerr.Code == oauth2.ErrCodeServerError {
		s.logger.Error().Err(err).Msg("authorize failed")
	}
	writeOAuthError(w, oerr)
}

func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, redirect *auth.RedirectError) {
	params := url.Values{
		"error":             {string(redirect.Err.Code)},
		"error_description": {redirect.Err.Description},
	}
	if redirect.State != "" {
		params.Set("state", redirect.State)
	}
	redirectWithParams(w, r, redirect.RedirectURI, params)
}

func redirectWithParams(w http.ResponseWriter, r *http.Request, redirectURI string, params url.Values) {
	target, err := url.Parse(redirectURI)
	if err != nil {
		writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeServerError, "invalid redirect uri"))
		return
	}
	q := target.Query()
	for key, values := range params {
		for _, v := range values {
			if v != "" {
				q.Set(key, v)
			}
		}
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func writeOAuthError(w http.ResponseWriter, oerr *oauth2.Error) {
	writeJSON(w, oerr.HTTPStatus(), oerr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
