package http

import (
	"net/http"

	"optionsworth/internal/core"
)

type addGrantResponse struct {
	Index     int            `json:"index"`
	Portfolio core.Valuation `json:"portfolio"`
}

type totalResponse struct {
	Total     float64 `json:"total"`
	Formatted string  `json:"formatted"`
	Grants    int     `json:"grants"`
}

func (s *Server) handleAPIPortfolio(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	WriteJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleAPITotal(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	v := sess.Snapshot()
	WriteJSON(w, http.StatusOK, totalResponse{
		Total:     v.Total,
		Formatted: core.FormatAmount(v.Total),
		Grants:    len(v.Grants),
	})
}

func (s *Server) handleAPIAddGrant(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	index, v := s.calc.AddGrant(r.Context(), sess)
	WriteJSON(w, http.StatusCreated, addGrantResponse{Index: index, Portfolio: v})
}

func (s *Server) handleAPISetGrantField(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	index, err := parseIndex(r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	field, value, err := parseGrantChange(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}

	v, err := s.calc.SetGrantField(r.Context(), sess, index, field, value)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (s *Server) handleAPISetRate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	field, value, err := parseRateChange(w, r)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}

	v, err := s.calc.SetGlobalRate(r.Context(), sess, field, value)
	if err != nil {
		s.fail(w, r, err, true)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}
