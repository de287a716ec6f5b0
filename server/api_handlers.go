package server

import (
	"net/http"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/users"
)

func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": s.config.GetAppName(),
		})
	}
}

// UserInfo serves the basic profile for the token's user.
func (s *Server) UserInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, oerr := s.tokenUser(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}
		writeJSON(w, http.StatusOK, user.Profile())
	}
}

// UserDetails serves the extended profile for the token's user.
func (s *Server) UserDetails() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, oerr := s.tokenUser(r)
		if oerr != nil {
			writeOAuthError(w, oerr)
			return
		}
		writeJSON(w, http.StatusOK, user.DetailedProfile())
	}
}

// tokenUser resolves the user behind the request's validated token.
// client_credentials tokens carry no user and cannot read profile endpoints.
func (s *Server) tokenUser(r *http.Request) (*users.User, *oauth2.Error) {
	info, ok := TokenInfoFromContext(r.Context())
	if !ok {
		return nil, oauth2.NewError(oauth2.ErrCodeServerError, "internal server error")
	}
	if info.UserID == "" {
		return nil, oauth2.NewError(oauth2.ErrCodePermissionDenied,
			"token is not bound to a user").
			WithHint("profile endpoints require a user-delegated token")
	}

	user, err := s.auth.UserInfo(info.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", info.UserID).Msg("user lookup failed")
		return nil, oauth2.NewError(oauth2.ErrCodeServerError, "internal server error")
	}
	return user, nil
}
