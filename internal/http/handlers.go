package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"whaling/internal/core"
	applog "whaling/internal/log"
	"whaling/internal/records"
	"whaling/internal/view"
)

const maxBodyBytes = 4 << 10

var errUnknownHarbor = errors.New("unknown harbor")

type (
	selectYearRequest struct {
		Year   int         `json:"year"`
		Source core.Source `json:"source"`
	}

	popupRequest struct {
		Location string `json:"location"`
		Action   string `json:"action"`
	}

	totalsResponse struct {
		Totals        []core.YearTotal `json:"totals"`
		Years         []int            `json:"years"`
		Whales        []float64        `json:"whales"`
		SelectedYear  int              `json:"selectedYear"`
		SelectedIndex int              `json:"selectedIndex"`
	}

	recordsResponse struct {
		Year    int           `json:"year,omitempty"`
		Records []core.Record `json:"records"`
		Hidden  int           `json:"hidden"`
	}

	harborResponse struct {
		Location      string        `json:"location"`
		Series        []core.Record `json:"series"`
		SelectedIndex int           `json:"selectedIndex"`
	}
)

type pageData struct {
	Snapshot view.Snapshot
	Totals   []core.YearTotal
	First    int
	Last     int
	Year     int
}

func (s *Server) pageData() pageData {
	totals := s.sync.Totals()
	first, last, _ := totals.Bounds()
	return pageData{
		Snapshot: s.board.Snapshot(),
		Totals:   totals.Totals(),
		First:    first,
		Last:     last,
		Year:     s.sync.CurrentYear(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", s.pageData())
}

// handleYearPartial renders the year and total labels for polling clients.
func (s *Server) handleYearPartial(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "year.html", s.pageData())
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed",
			applog.FieldComponent, applog.ComponentHTTP,
			"template", name,
			applog.FieldError, err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleSelectYear applies a year picked on the slider or a chart. Form
// posts get the label partial back, JSON posts get the view snapshot.
func (s *Server) handleSelectYear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeSelectYear(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err = s.sync.Dispatch(r.Context(), core.YearSelected{Year: req.Year, Source: req.Source})
	switch {
	case errors.Is(err, view.ErrUnknownYear):
		writeError(w, r, http.StatusUnprocessableEntity, "no records for year "+strconv.Itoa(req.Year))
		return
	case errors.Is(err, view.ErrUnknownSource):
		writeError(w, r, http.StatusBadRequest, "unknown selection source")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Year selection failed",
			applog.FieldComponent, applog.ComponentHTTP,
			applog.FieldYear, req.Year,
			applog.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "selection failed")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, r, http.StatusOK, s.board.Snapshot())
		return
	}
	s.render(w, r, "year.html", s.pageData())
}

func decodeSelectYear(w http.ResponseWriter, r *http.Request) (selectYearRequest, error) {
	req := selectYearRequest{Source: core.SourceSlider}
	if jsonBody(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			return req, errors.New("invalid JSON body")
		}
		if req.Source == "" {
			req.Source = core.SourceSlider
		}
		if req.Year <= 0 {
			return req, errors.New("invalid year")
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, errors.New("invalid form body")
	}
	year, err := parseYear(r.Form.Get("year"))
	if err != nil {
		return req, err
	}
	req.Year = year
	if src := sanitizeInput(r.Form.Get("source")); src != "" {
		req.Source = core.Source(src)
	}
	return req, nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals := s.sync.Totals()
	years, whales := totals.Columns()
	year := s.sync.CurrentYear()
	writeJSON(w, r, http.StatusOK, totalsResponse{
		Totals:        totals.Totals(),
		Years:         years,
		Whales:        whales,
		SelectedYear:  year,
		SelectedIndex: totals.Index(year),
	})
}

// handleRecords returns every record, or with ?year= the records visible in
// that year.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	all := s.sync.Records()
	raw := r.URL.Query().Get("year")
	if raw == "" {
		writeJSON(w, r, http.StatusOK, recordsResponse{Records: nonNil(all)})
		return
	}
	year, err := parseYear(raw)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := s.sync.Totals().Lookup(year); !ok {
		writeError(w, r, http.StatusNotFound, "no records for year "+strconv.Itoa(year))
		return
	}
	visible, hidden := core.Partition(all, year)
	writeJSON(w, r, http.StatusOK, recordsResponse{Year: year, Records: nonNil(visible), Hidden: len(hidden)})
}

// handleHarbor serves the popup chart series for one harbor. The selected
// index is the position of the current year within that harbor's series.
func (s *Server) handleHarbor(w http.ResponseWriter, r *http.Request) {
	location := sanitizeInput(r.PathValue("location"))
	series, err := s.harborCache.GetOrLoad(location, func() ([]core.Record, error) {
		series := core.HarborSeries(s.sync.Records(), location)
		if len(series) == 0 {
			return nil, errUnknownHarbor
		}
		return series, nil
	})
	if err != nil {
		writeError(w, r, http.StatusNotFound, "unknown harbor "+location)
		return
	}

	year := s.sync.CurrentYear()
	idx := -1
	for i, rec := range series {
		if rec.Year == year {
			idx = i
			break
		}
	}
	writeJSON(w, r, http.StatusOK, harborResponse{Location: location, Series: series, SelectedIndex: idx})
}

func (s *Server) handlePopup(w http.ResponseWriter, r *http.Request) {
	var req popupRequest
	if jsonBody(r) {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid form body")
			return
		}
		req.Location = r.Form.Get("location")
		req.Action = r.Form.Get("action")
	}
	req.Location = sanitizeInput(req.Location)

	switch req.Action {
	case "close":
		s.sync.ClosePopup()
	case "", "open":
		if req.Location == "" {
			writeError(w, r, http.StatusBadRequest, "location is required")
			return
		}
		if _, err := s.sync.OpenPopup(r.Context(), req.Location); err != nil {
			if errors.Is(err, view.ErrNoRecord) {
				writeError(w, r, http.StatusNotFound, "no record for "+req.Location+" in the selected year")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "open popup failed")
			return
		}
	default:
		writeError(w, r, http.StatusBadRequest, "unknown popup action "+req.Action)
		return
	}
	writeJSON(w, r, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleExportTotals(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := records.WriteTotalsXLSX(&buf, s.sync.Totals().Totals()); err != nil {
		slog.ErrorContext(r.Context(), "Totals export failed",
			applog.FieldComponent, applog.ComponentExport,
			applog.FieldOperation, applog.OpExport,
			applog.FieldError, err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="whaling-totals.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func nonNil(rs []core.Record) []core.Record {
	if rs == nil {
		return []core.Record{}
	}
	return rs
}
