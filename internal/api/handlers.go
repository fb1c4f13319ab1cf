package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-study/internal/catalog"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

type planRequest struct {
	planner.PlanSettings
	HorizonDays int  `json:"horizonDays,omitempty"`
	Apply       bool `json:"apply,omitempty"`
}

type planResponse struct {
	Blocks   []planner.StudyBlock `json:"blocks"`
	Summary  planner.Summary      `json:"summary"`
	Warnings []planner.Skip       `json:"warnings"`
	Applied  bool                 `json:"applied"`
}

type toggleRequest struct {
	ActualMinutes int `json:"actualMinutes"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": s.cfg.Generator.Templates().List()})
}

func (s *Server) handleDisciplines(w http.ResponseWriter, _ *http.Request) {
	all := s.cfg.Catalog.All()
	if all == nil {
		all = []catalog.Discipline{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"disciplines": all})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	problems, err := s.validatePlanRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, joinProblems(problems))
		return
	}

	var req planRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Apply && req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required to apply a plan")
		return
	}

	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = s.cfg.HorizonDays
	}

	if !req.Apply {
		plan, err := s.cfg.Generator.Generate(req.PlanSettings, s.cfg.Catalog, horizon)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newPlanResponse(plan, false))
		return
	}

	st, err := s.cfg.Sessions.Open(r.Context(), req.UserID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	plan, err := s.cfg.Generator.GenerateAround(req.PlanSettings, s.cfg.Catalog, horizon, st.Blocks())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	added, err := st.AddAll(r.Context(), plan.Blocks)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	plan.Blocks = added
	s.changed(st)
	writeJSON(w, http.StatusCreated, newPlanResponse(plan, true))
}

func newPlanResponse(p planner.Plan, applied bool) planResponse {
	resp := planResponse{Blocks: p.Blocks, Summary: p.Summary, Warnings: p.Warnings, Applied: applied}
	if resp.Blocks == nil {
		resp.Blocks = []planner.StudyBlock{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []planner.Skip{}
	}
	return resp
}

func (s *Server) openStore(w http.ResponseWriter, r *http.Request) (*schedule.Store, bool) {
	st, err := s.cfg.Sessions.Open(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeStoreError(w, r, err)
		return nil, false
	}
	return st, true
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, from, to := q.Get("date"), q.Get("from"), q.Get("to")
	for _, d := range []string{date, from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(planner.DateLayout, d); err != nil {
			writeError(w, http.StatusBadRequest, "dates must be YYYY-MM-DD, got "+d)
			return
		}
	}
	if (from == "") != (to == "") {
		writeError(w, http.StatusBadRequest, "from and to must be given together")
		return
	}

	st, ok := s.openStore(w, r)
	if !ok {
		return
	}

	var blocks []planner.StudyBlock
	switch {
	case date != "":
		blocks = st.ByDate(date)
	case from != "":
		blocks = st.ByDateRange(from, to)
	default:
		blocks = st.Blocks()
	}
	if blocks == nil {
		blocks = []planner.StudyBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (s *Server) handleAddBlock(w http.ResponseWriter, r *http.Request) {
	var b planner.StudyBlock
	if err := readJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	added, err := st.Add(r.Context(), b)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed(st)
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	var b planner.StudyBlock
	if err := readJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	id := r.PathValue("id")
	if b.ID != "" && b.ID != id {
		writeError(w, http.StatusBadRequest, "block id in body does not match the path")
		return
	}
	b.ID = id

	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	updated, err := st.Update(r.Context(), b)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed(st)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRemoveBlock(w http.ResponseWriter, r *http.Request) {
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	if err := st.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed(st)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	res, err := st.ToggleCompletion(r.Context(), r.PathValue("id"), req.ActualMinutes)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed(st)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetView(w http.ResponseWriter, r *http.Request) {
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var v schedule.View
	if err := readJSON(r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	if err := st.SetView(r.Context(), v); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st.View())
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Reports.Report(st.Blocks(), st.Logs(), s.now()))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	logs := st.Logs()
	if logs == nil {
		logs = []schedule.ProgressEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	st, ok := s.openStore(w, r)
	if !ok {
		return
	}
	if err := st.ClearUserData(r.Context()); err != nil {
		writeStoreError(w, r, err)
		return
	}
	s.changed(st)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.WebSocket == nil {
		writeError(w, http.StatusNotFound, "websocket push is disabled")
		return
	}
	s.cfg.WebSocket.Serve(w, r, r.PathValue("userID"))
}
