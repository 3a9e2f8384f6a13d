package http

import (
	"net/http"

	"campusbudget/internal/engine"
	applog "campusbudget/internal/log"
)

// reportWindow resolves the range, start and end query parameters.
func (s *Server) reportWindow(r *http.Request) (engine.Window, error) {
	now := s.now()
	sel, explicit, err := parseReportQuery(r.URL.Query(), now.Location())
	if err != nil {
		return engine.Window{}, err
	}
	w, err := s.reports.Window(sel, now, explicit)
	if err != nil {
		return engine.Window{}, err
	}
	applog.FromContext(r.Context()).DebugContext(r.Context(), "Resolved report window",
		applog.FieldRange, string(sel), "start", w.Start, "end", w.End)
	return w, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	d, err := s.reports.Dashboard(r.Context(), mustUserID(r), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(d).Write(w)
}

// handleSummary serves the full report of one window.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	win, err := s.reportWindow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.Report(r.Context(), mustUserID(r), win)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	win, err := s.reportWindow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.reports.Categories(r.Context(), mustUserID(r), win, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	win, err := s.reportWindow(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.reports.Series(r.Context(), mustUserID(r), win)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(a).Write(w)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	limit, err := parseLimit(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	feed, err := s.reports.Transactions(r.Context(), mustUserID(r), s.now(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if feed == nil {
		feed = []engine.FeedItem{}
	}
	NewResponse().JSON(feed).Write(w)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	p, err := s.reports.Budgets(r.Context(), mustUserID(r), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.reports.BudgetProgress(r.Context(), mustUserID(r), id, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	rep, err := s.reports.Savings(r.Context(), mustUserID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}
