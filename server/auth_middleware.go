package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
	"github.com/mubarokah/id-server/token"
)

type contextKey string

const tokenInfoKey contextKey = "tokenInfo"

// TokenInfoFromContext returns the validated token for the request, set by
// RequireToken.
func TokenInfoFromContext(ctx context.Context) (*token.Info, bool) {
	info, ok := ctx.Value(tokenInfoKey).(*token.Info)
	return info, ok
}

// RequireToken authenticates the bearer token and enforces the two
// authorization gates in order: the token must carry the required scope
// (insufficient_scope), and for elevated scopes the client itself must hold
// platform approval (unapproved_scope).
func (s *Server) RequireToken(required scopes.Scope) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="mubarokah-id"`)
				writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeUnauthenticated, "missing bearer token"))
				return
			}

			info, err := s.auth.ValidateToken(raw)
			if err != nil {
				oerr := oauth2.AsError(err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="mubarokah-id", error="`+string(oerr.Code)+`"`)
				writeOAuthError(w, oerr)
				return
			}

			if !info.Scopes.Has(required) {
				writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeInsufficientScope,
					"token does not carry the required scope").
					WithHint("request the '"+string(required)+"' scope during authorization"))
				return
			}

			if scopes.Elevated(required) {
				client, err := s.auth.ClientByID(info.ClientID)
				if err != nil {
					s.logger.Error().Err(err).Str("client_id", info.ClientID).Msg("client lookup failed")
					writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeServerError, "internal server error"))
					return
				}
				if !client.ApprovesScope(required) {
					writeOAuthError(w, oauth2.NewError(oauth2.ErrCodeUnapprovedScope,
						"application is not approved for the '"+string(required)+"' scope").
						WithHint("request platform approval for elevated scopes"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), tokenInfoKey, info)
			next(w, r.WithContext(ctx))
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
