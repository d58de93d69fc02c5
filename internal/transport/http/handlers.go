package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type registerRequest struct {
	DisplayName       string             `json:"displayName"`
	Age               int                `json:"age"`
	Country           string             `json:"country"`
	EntrySource       domain.EntrySource `json:"entrySource"`
	SelectedLanguages []string           `json:"selectedLanguages"`
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	p, err := rt.svc.Contests.Register(r.Context(), domain.Registration{
		ContestID:         chi.URLParam(r, "contestID"),
		UserID:            userID,
		DisplayName:       req.DisplayName,
		Age:               req.Age,
		Country:           req.Country,
		EntrySource:       req.EntrySource,
		SelectedLanguages: req.SelectedLanguages,
	})
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (rt *Router) handleEnter(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	res, err := rt.svc.Contests.Enter(r.Context(), chi.URLParam(r, "contestID"), userID)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	var req domain.SegmentResult
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	res, err := rt.svc.Contests.LogProgress(r.Context(), chi.URLParam(r, "contestID"), userID, req)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleSubmitScores(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	var batch domain.RoundScoreBatch
	if err := decodeJSON(r, &batch); err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	res, err := rt.svc.Contests.SubmitFinalScores(r.Context(), chi.URLParam(r, "contestID"), userID, batch)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	res, err := rt.svc.Contests.Summary(r.Context(), chi.URLParam(r, "contestID"), userID)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rt *Router) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	lb, err := rt.svc.Leaderboards.GetLeaderboard(r.Context(), chi.URLParam(r, "contestID"), limit)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	viewer, _ := userIDFrom(r.Context())
	writeJSON(w, http.StatusOK, app.MarkViewer(lb, viewer))
}

func (rt *Router) handleRoundContent(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, r, rt.log, domain.Invalidf("level must be a number"))
		return
	}
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil {
		writeError(w, r, rt.log, domain.Invalidf("round must be a number"))
		return
	}
	q := r.URL.Query()
	seg := domain.Segment{Level: level, Round: round, Language: q.Get("language")}
	filters := domain.ContentFilters{
		Category: q.Get("category"),
		Subject:  q.Get("subject"),
		OrgID:    q.Get("orgId"),
	}
	content, err := rt.svc.Content.FetchRoundContent(r.Context(), chi.URLParam(r, "contestID"), seg, filters)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (rt *Router) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	var ev domain.MasteryEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	stored, err := rt.svc.Mastery.LogEvent(r.Context(), userID, ev)
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (rt *Router) handleMastery(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFrom(r.Context())
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	score, err := rt.svc.Mastery.GetMasteryScore(r.Context(), userID, chi.URLParam(r, "language"), r.URL.Query().Get("orgId"))
	if err != nil {
		writeError(w, r, rt.log, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalidf("malformed request body: %v", err)
	}
	return nil
}

func intQuery(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalidf("%s must be a number", key)
	}
	return n, nil
}
