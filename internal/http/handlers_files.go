package http

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"optionsworth/internal/log"
	"optionsworth/internal/report"
	"optionsworth/internal/scenario"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}

	v := sess.Snapshot()
	pdf, err := report.Generate(v, report.Options{GeneratedAt: time.Now()})
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentReport).ErrorContext(r.Context(),
			"Failed to generate report",
			log.FieldSessionID, sess.ID(),
			log.FieldGrantCount, len(v.Grants),
			log.FieldError, err)
		http.Error(w, "Could not generate the report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="options-report.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, false)
		return
	}

	var buf bytes.Buffer
	if err := scenario.Encode(&buf, scenario.FromValuation(sess.Snapshot())); err != nil {
		s.fail(w, r, fmt.Errorf("encode portfolio: %w", err), false)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Portfolio exported",
		log.FieldSessionID, sess.ID(),
		log.FieldOperation, log.OpExport)

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="portfolio.yaml"`)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replaces the session portfolio with an uploaded file. The
// file may arrive as a multipart upload named "file" or as the raw body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	api := !isHTMX(r)
	sess, err := s.session(w, r)
	if err != nil {
		s.fail(w, r, err, api)
		return
	}

	body, err := importBody(w, r)
	if err != nil {
		s.fail(w, r, err, api)
		return
	}
	defer body.Close()

	f, err := scenario.Decode(body, s.sessions.DefaultRates())
	if err != nil {
		s.fail(w, r, err, api)
		return
	}

	v := s.calc.Import(r.Context(), sess, f.Portfolio())
	if api {
		WriteJSON(w, http.StatusOK, v)
		return
	}
	msg := fmt.Sprintf("Imported %d grants", len(v.Grants))
	if len(v.Grants) == 1 {
		msg = "Imported 1 grant"
	}
	s.renderCalculatorWith(w, r, v, NewHTMXResponse().TriggerSuccessNotification(msg))
}

func importBody(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
		return nil, fmt.Errorf("read upload: %v: %w", err, errBadRequest)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("missing file: %v: %w", err, errBadRequest)
	}
	return file, nil
}
