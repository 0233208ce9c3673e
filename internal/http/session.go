package http

import (
	"net/http"

	"optionsworth/internal/log"
	"optionsworth/internal/session"
)

const sessionCookie = "ow_session"

// session returns the caller's session, starting one and setting the cookie
// when the request carries no live session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	sess, created, err := s.sessions.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID(),
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
		log.FromContext(r.Context()).DebugContext(r.Context(), "Session started",
			log.FieldSessionID, sess.ID(),
			"replaced_stale", id != "")
	}
	return sess, nil
}
