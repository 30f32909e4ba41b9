package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridcheck/internal/core"
	"github.com/JonMunkholm/gridcheck/internal/csvimport"
	"github.com/JonMunkholm/gridcheck/internal/logging"
)

const (
	// maxBodyBytes caps request bodies; loads of a full grid stay well below it.
	maxBodyBytes = 8 << 20

	// eventBuffer is the per-client notification buffer. Slow clients drop events.
	eventBuffer = 256

	// keepAliveInterval spaces SSE comments that keep idle proxies from closing the stream.
	keepAliveInterval = 15 * time.Second
)

// ============================================================================
// Request and response bodies
// ============================================================================

// CellRequest is the body of POST /api/cells.
type CellRequest struct {
	Row    int        `json:"row"`
	Column string     `json:"column"`
	Value  core.Value `json:"value"`
	Parse  bool       `json:"parse,omitempty"` // infer the kind of a text value
}

// CellErrorRequest is the body of POST /api/cells/errors.
type CellErrorRequest struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

// PasteRequest is the body of POST /api/paste.
type PasteRequest struct {
	Row    int            `json:"row"`
	Column string         `json:"column"`
	Values [][]core.Value `json:"values"`
}

// LoadRequest is the body of POST /api/rows/load.
type LoadRequest struct {
	Rows []map[string]core.Value `json:"rows"`
}

// ImportResponse reports a CSV import and the validation that followed.
type ImportResponse struct {
	ValidateResponse
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	HeaderRow int      `json:"header_row"`
	Columns   []string `json:"columns"`
	Ignored   []string `json:"ignored,omitempty"`
}

// ValidateResponse summarizes a grid-wide validation.
type ValidateResponse struct {
	Valid       bool  `json:"valid"`
	Rows        int   `json:"rows"`
	ValidRows   int   `json:"valid_rows"`
	InvalidRows int   `json:"invalid_rows"`
	DurationMs  int64 `json:"duration_ms"`
}

// RowValidationResponse is the result of validating one row.
type RowValidationResponse struct {
	Row     int                     `json:"row"`
	Valid   bool                    `json:"valid"`
	Summary string                  `json:"summary,omitempty"`
	Results []core.ValidationResult `json:"results"`
}

// ColumnResponse describes one grid column.
type ColumnResponse struct {
	Name     string `json:"name"`
	Header   string `json:"header"`
	DataType string `json:"data_type"`
	MinWidth int    `json:"min_width"`
	MaxWidth int    `json:"max_width"`
	Width    int    `json:"width"`
	ReadOnly bool   `json:"read_only"`
	ToolTip  string `json:"tooltip,omitempty"`
}

// RuleResponse describes a registered rule. Predicates are not serializable.
type RuleResponse struct {
	ID          string `json:"id"`
	Column      string `json:"column"`
	Message     string `json:"message"`
	Priority    int    `json:"priority"`
	Async       bool   `json:"async"`
	Conditional bool   `json:"conditional"`
	TimeoutMs   int64  `json:"timeout_ms,omitempty"`
}

// StatusResponse combines grid, limiter and throttle state.
type StatusResponse struct {
	core.GridStatus
	Throttling ThrottlingResponse `json:"throttling"`
}

// ThrottlingResponse is the active throttling configuration in milliseconds.
type ThrottlingResponse struct {
	Enabled             bool  `json:"enabled"`
	TypingDelayMs       int64 `json:"typing_delay_ms"`
	PasteDelayMs        int64 `json:"paste_delay_ms"`
	BatchDelayMs        int64 `json:"batch_delay_ms"`
	MaxConcurrent       int   `json:"max_concurrent"`
	MinIntervalMs       int64 `json:"min_interval_ms"`
	ValidationTimeoutMs int64 `json:"validation_timeout_ms"`
}

// CountResponse reports how many rows or cells an operation touched.
type CountResponse struct {
	Count int `json:"count"`
	Rows  int `json:"rows"`
}

// ============================================================================
// Status and schema
// ============================================================================

// handleStatus returns the grid, limiter and throttle status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	t := s.grid.Throttling()
	writeJSON(w, http.StatusOK, StatusResponse{
		GridStatus: s.grid.Status(),
		Throttling: ThrottlingResponse{
			Enabled:             t.Enabled,
			TypingDelayMs:       t.TypingDelay.Milliseconds(),
			PasteDelayMs:        t.PasteDelay.Milliseconds(),
			BatchDelayMs:        t.BatchValidationDelay.Milliseconds(),
			MaxConcurrent:       t.MaxConcurrentValidations,
			MinIntervalMs:       t.MinValidationInterval.Milliseconds(),
			ValidationTimeoutMs: t.ValidationTimeout.Milliseconds(),
		},
	})
}

// handleColumns lists the grid columns, special columns included.
func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols := s.grid.Columns()
	resp := make([]ColumnResponse, len(cols))
	for i, c := range cols {
		resp[i] = ColumnResponse{
			Name:     c.Name,
			Header:   c.Header,
			DataType: c.DataType.String(),
			MinWidth: c.MinWidth,
			MaxWidth: c.MaxWidth,
			Width:    c.Width,
			ReadOnly: c.ReadOnly,
			ToolTip:  c.ToolTip,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// Edits
// ============================================================================

// handleCellChanged ingests one edit. Validation runs after the typing delay,
// so the response only acknowledges the edit.
func (s *Server) handleCellChanged(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	value := req.Value
	if req.Parse && value.Kind() == core.KindText {
		value = core.ParseValue(value.String())
	}

	if err := s.grid.OnCellValueChanged(req.Row, req.Column, value); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Debug("cell changed", "row", req.Row, "column", req.Column)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"row":    req.Row,
		"column": req.Column,
		"state":  s.grid.CellState(req.Row, req.Column).String(),
	})
}

// handleAddCellError attaches an externally produced error to a cell.
func (s *Server) handleAddCellError(w http.ResponseWriter, r *http.Request) {
	var req CellErrorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.respondError(w, r, fmt.Errorf("%w: message is required", errBadRequest), 0)
		return
	}

	if err := s.grid.AddCellError(req.Row, req.Column, req.Message); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePaste writes a rectangular block starting at one cell.
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	var req PasteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	n, err := s.grid.Paste(req.Row, req.Column, req.Values)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, CountResponse{Count: n, Rows: s.grid.RowCount()})
}

// ============================================================================
// Validation
// ============================================================================

// handleValidateAll validates every non-empty row and returns the summary.
// Progress is published on the event stream.
func (s *Server) handleValidateAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.grid.ValidateAll(r.Context(), nil)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, toValidateResponse(res))
}

// handleValidateRow validates one row immediately.
func (s *Server) handleValidateRow(w http.ResponseWriter, r *http.Request) {
	index, err := rowParam(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	results, err := s.grid.ValidateRow(r.Context(), index)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	resp := RowValidationResponse{Row: index, Valid: true, Results: results}
	for _, res := range results {
		if !res.Valid {
			resp.Valid = false
		}
	}
	if row, err := s.grid.Row(index); err == nil {
		resp.Summary = row.ErrorSummary()
	}
	writeJSON(w, http.StatusOK, resp)
}

func toValidateResponse(res core.BatchResult) ValidateResponse {
	return ValidateResponse{
		Valid:       res.Valid(),
		Rows:        res.Rows,
		ValidRows:   res.ValidRows,
		InvalidRows: res.InvalidRows,
		DurationMs:  res.Duration.Milliseconds(),
	}
}

// ============================================================================
// Rows
// ============================================================================

// handleSnapshot exports every non-empty row. ?summary=true adds the
// ValidAlerts column to the values.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	includeSummary, _ := strconv.ParseBool(r.URL.Query().Get("summary"))
	writeJSON(w, http.StatusOK, s.grid.ExportSnapshot(includeSummary))
}

// handleLoadRows replaces the grid content and validates the loaded rows.
func (s *Server) handleLoadRows(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	res, err := s.grid.LoadRows(r.Context(), req.Rows)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, toValidateResponse(res))
}

// handleImportCSV replaces the grid content with a CSV body. The separator
// is detected unless ?delimiter= is "comma", "semicolon" or "tab";
// ?parse=true infers value kinds.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	opts := csvimport.Options{}
	switch d := r.URL.Query().Get("delimiter"); d {
	case "":
	case "comma", ",":
		opts.Comma = ','
	case "semicolon", ";":
		opts.Comma = ';'
	case "tab":
		opts.Comma = '\t'
	default:
		s.respondError(w, r, fmt.Errorf("%w: unknown delimiter %q", errBadRequest, d), 0)
		return
	}
	opts.Parse, _ = strconv.ParseBool(r.URL.Query().Get("parse"))

	var columns []string
	for _, c := range s.grid.Columns() {
		if !core.IsSpecialColumn(c.Name) {
			columns = append(columns, c.Name)
		}
	}

	res, err := csvimport.Read(http.MaxBytesReader(w, r.Body, maxBodyBytes), columns, opts)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(r.Context(), "operation", "ImportCSV").Info("csv decoded",
		"records", len(res.Records),
		"skipped", res.Skipped,
		"columns", res.Columns,
		"ignored", res.Ignored,
	)

	batch, err := s.grid.LoadRows(r.Context(), res.Records)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{
		ValidateResponse: toValidateResponse(batch),
		Imported:         len(res.Records),
		Skipped:          res.Skipped,
		HeaderRow:        res.HeaderRow,
		Columns:          res.Columns,
		Ignored:          res.Ignored,
	})
}

// handleRemoveEmpty drops blank rows beyond the minimum empty padding.
func (s *Server) handleRemoveEmpty(w http.ResponseWriter, r *http.Request) {
	n, err := s.grid.RemoveEmptyRows(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n, Rows: s.grid.RowCount()})
}

// handleRemoveInvalid drops every row that currently has errors.
func (s *Server) handleRemoveInvalid(w http.ResponseWriter, r *http.Request) {
	n, err := s.grid.RemoveInvalidRows(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n, Rows: s.grid.RowCount()})
}

// handleDeleteRow clears one row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	index, err := rowParam(r)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if err := s.grid.DeleteRow(index); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearAll empties every row and cancels pending validations.
func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.grid.ClearAll(r.Context()); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Rules
// ============================================================================

// handleListRules lists the rules of every column in evaluation order.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	resp := []RuleResponse{}
	for _, col := range s.grid.RuleColumns() {
		for _, rule := range s.grid.Rules(col) {
			rr := RuleResponse{
				ID:          rule.ID,
				Column:      rule.Column,
				Message:     rule.Message,
				Priority:    rule.Priority,
				Async:       rule.IsAsync(),
				Conditional: rule.Condition != nil,
			}
			if rule.IsAsync() {
				rr.TimeoutMs = rule.Timeout.Milliseconds()
			}
			resp = append(resp, rr)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoveRule removes one rule by id.
func (s *Server) handleRemoveRule(w http.ResponseWriter, r *http.Request) {
	column := chi.URLParam(r, "column")
	id := chi.URLParam(r, "id")
	if !s.grid.RemoveRule(column, id) {
		s.respondError(w, r, fmt.Errorf("rule %s/%s: %w", column, id, errRuleNotFound), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearRules removes every rule of one column.
func (s *Server) handleClearRules(w http.ResponseWriter, r *http.Request) {
	s.grid.ClearRules(chi.URLParam(r, "column"))
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Event stream
// ============================================================================

// handleEvents streams grid notifications via Server-Sent Events. The SSE
// event name is the notification kind. The stream ends with a "closed"
// event when the grid shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := s.grid.Subscribe(eventBuffer)
	defer unsubscribe()

	// Set up SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Warn("event stream not supported", "error", err)
		return
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}

			data, err := json.Marshal(e)
			if err != nil {
				logging.FromContext(r.Context()).Error("event encode error", "kind", e.Kind, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Kind, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			// Client disconnected
			return
		}
	}
}

// ============================================================================
// Helpers
// ============================================================================

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// rowParam parses the {row} URL parameter.
func rowParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "row")
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: row %q is not a number", errBadRequest, raw)
	}
	return index, nil
}
