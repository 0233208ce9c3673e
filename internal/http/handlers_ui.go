package http

import (
	"net/http"

	"optionsworth/internal/core"
	"optionsworth/internal/log"
	"optionsworth/internal/report"
)

const htmlContentType = "text/html; charset=utf-8"

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}

	body, err := s.render("index.html", pageView{
		Title:      report.Title,
		Calculator: newCalculatorView(sess.Snapshot()),
	})
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	NewHTMXResponse().Header("Content-Type", htmlContentType).Body(body).Write(w)
}

func (s *Server) handleCalculator(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	s.renderCalculator(w, r, sess.Snapshot())
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	field, value, err := parseRateChange(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}

	v, err := s.calc.SetGlobalRate(r.Context(), sess, field, value)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	s.renderCalculator(w, r, v)
}

func (s *Server) handleAddGrant(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	_, v := s.calc.AddGrant(r.Context(), sess)
	s.renderCalculator(w, r, v)
}

func (s *Server) handleSetGrantField(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	index, err := parseIndex(r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	field, value, err := parseGrantChange(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}

	v, err := s.calc.SetGrantField(r.Context(), sess, index, field, value)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}
	s.renderCalculator(w, r, v)
}

// renderCalculator swaps in the calculator partial and tells listeners the
// total changed.
func (s *Server) renderCalculator(w http.ResponseWriter, r *http.Request, v core.Valuation) {
	s.renderCalculatorWith(w, r, v, NewHTMXResponse())
}

// renderCalculatorWith renders into resp, keeping any triggers already set.
func (s *Server) renderCalculatorWith(w http.ResponseWriter, r *http.Request, v core.Valuation, resp *HTMXResponseBuilder) {
	body, err := s.render("calculator", newCalculatorView(v))
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(),
			"Failed to render calculator",
			log.FieldOperation, log.OpRender,
			log.FieldError, err)
		InternalServerError("Could not render the calculator").Write(w)
		return
	}
	resp.
		TriggerPortfolioUpdated(v).
		Header("Content-Type", htmlContentType).
		Body(body).
		Write(w)
}
