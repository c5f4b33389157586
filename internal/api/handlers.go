package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leasemarket/internal/domain"
	"leasemarket/internal/export"
	"leasemarket/internal/lease"
	"leasemarket/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleLease(w http.ResponseWriter, r *http.Request) {
	var req models.LeaseRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RequesterID <= 0 || req.ResourceID <= 0 {
		writeError(w, http.StatusBadRequest, "requester_id and resource_id are required")
		return
	}

	resp, err := s.service.Lease(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !resp.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *HTTPServer) handleResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.service.Resources(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": resources})
}

func (s *HTTPServer) handleResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	resource, err := s.service.Resource(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (s *HTTPServer) handleContracts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}

	contracts, err := s.service.Contracts(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resource_id": id,
		"from":        from,
		"to":          to,
		"contracts":   contracts,
	})
}

func (s *HTTPServer) handleContractsExport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	from, to, ok := dayRange(w, r)
	if !ok {
		return
	}

	resource, err := s.service.Resource(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	contracts, err := s.service.Contracts(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteContracts(&buf, *resource, contracts, from, to); err != nil {
		s.writeServiceError(w, err)
		return
	}

	fileName := fmt.Sprintf("contracts_%d_%s_to_%s.xlsx", id, from, to)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	healthy := true
	for name, check := range s.health {
		if err := check(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	var (
		invalid *lease.InvalidRangeError
		nf      *lease.NotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrLocked):
		writeError(w, http.StatusLocked, "resource is being leased by another request, retry later")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "requested hours were leased concurrently")
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return 0, false
	}
	return id, true
}

// dayRange reads ?from=YYYY-MM-DD&to=YYYY-MM-DD; to defaults to from.
func dayRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return "", "", false
	}
	if to == "" {
		to = from
	}

	fromDate, err := time.Parse(models.DayLayout, from)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from; expected YYYY-MM-DD")
		return "", "", false
	}
	toDate, err := time.Parse(models.DayLayout, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to; expected YYYY-MM-DD")
		return "", "", false
	}
	if toDate.Before(fromDate) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return "", "", false
	}
	return from, to, true
}
