package http

import (
	"context"
	"net/http"

	"campusbudget/internal/core"
)

// resource binds one record kind to the calls its collection and item
// routes make. create and update decode the request body themselves.
type resource[T any] struct {
	list   func(ctx context.Context, userID int64) ([]T, error)
	get    func(ctx context.Context, userID, id int64) (T, error)
	create func(r *http.Request, userID int64) (T, error)
	update func(r *http.Request, userID, id int64) (T, error)
	del    func(ctx context.Context, userID, id int64) error
}

func (s *Server) routes(mux *http.ServeMux) {
	store := s.records.Store()

	expenses := resource[core.Expense]{
		list: store.ListExpenses,
		get:  store.GetExpense,
		create: func(r *http.Request, userID int64) (core.Expense, error) {
			var req expenseRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Expense{}, err
			}
			e, err := req.expense(userID)
			if err != nil {
				return core.Expense{}, err
			}
			return s.records.CreateExpense(r.Context(), e)
		},
		update: func(r *http.Request, userID, id int64) (core.Expense, error) {
			var req expenseRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Expense{}, err
			}
			p, err := req.patch()
			if err != nil {
				return core.Expense{}, err
			}
			return s.records.UpdateExpense(r.Context(), userID, id, p)
		},
		del: s.records.DeleteExpense,
	}

	incomes := resource[core.Income]{
		list: store.ListIncomes,
		get:  store.GetIncome,
		create: func(r *http.Request, userID int64) (core.Income, error) {
			var req incomeRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Income{}, err
			}
			in, err := req.income(userID)
			if err != nil {
				return core.Income{}, err
			}
			return s.records.CreateIncome(r.Context(), in)
		},
		update: func(r *http.Request, userID, id int64) (core.Income, error) {
			var req incomeRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Income{}, err
			}
			p, err := req.patch()
			if err != nil {
				return core.Income{}, err
			}
			return s.records.UpdateIncome(r.Context(), userID, id, p)
		},
		del: s.records.DeleteIncome,
	}

	budgets := resource[core.Budget]{
		list: store.ListBudgets,
		get:  store.GetBudget,
		create: func(r *http.Request, userID int64) (core.Budget, error) {
			var req budgetRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Budget{}, err
			}
			b, err := req.budget(userID)
			if err != nil {
				return core.Budget{}, err
			}
			return s.records.CreateBudget(r.Context(), b)
		},
		update: func(r *http.Request, userID, id int64) (core.Budget, error) {
			var req budgetRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.Budget{}, err
			}
			p, err := req.patch()
			if err != nil {
				return core.Budget{}, err
			}
			return s.records.UpdateBudget(r.Context(), userID, id, p)
		},
		del: s.records.DeleteBudget,
	}

	goals := resource[core.SavingsGoal]{
		list: store.ListSavingsGoals,
		get:  store.GetSavingsGoal,
		create: func(r *http.Request, userID int64) (core.SavingsGoal, error) {
			var req savingsGoalRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.SavingsGoal{}, err
			}
			g, err := req.savingsGoal(userID)
			if err != nil {
				return core.SavingsGoal{}, err
			}
			return s.records.CreateSavingsGoal(r.Context(), g)
		},
		update: func(r *http.Request, userID, id int64) (core.SavingsGoal, error) {
			var req savingsGoalRequest
			if err := decodeJSON(r, &req); err != nil {
				return core.SavingsGoal{}, err
			}
			p, err := req.patch()
			if err != nil {
				return core.SavingsGoal{}, err
			}
			return s.records.UpdateSavingsGoal(r.Context(), userID, id, p)
		},
		del: s.records.DeleteSavingsGoal,
	}

	mux.Handle("/api/expenses", s.api(collectionHandler(s, expenses)))
	mux.Handle("/api/expenses/{id}", s.api(itemHandler(s, expenses)))
	mux.Handle("/api/incomes", s.api(collectionHandler(s, incomes)))
	mux.Handle("/api/incomes/{id}", s.api(itemHandler(s, incomes)))
	mux.Handle("/api/budgets", s.api(collectionHandler(s, budgets)))
	mux.Handle("/api/budgets/{id}", s.api(itemHandler(s, budgets)))
	mux.Handle("/api/budgets/{id}/progress", s.api(s.handleBudgetProgress))
	mux.Handle("/api/savings-goals", s.api(collectionHandler(s, goals)))
	mux.Handle("/api/savings-goals/{id}", s.api(itemHandler(s, goals)))
	mux.Handle("/api/savings-goals/{id}/contributions", s.api(s.handleContribution))

	mux.Handle("/api/reports/dashboard", s.api(s.handleDashboard))
	mux.Handle("/api/reports/summary", s.api(s.handleSummary))
	mux.Handle("/api/reports/categories", s.api(s.handleCategories))
	mux.Handle("/api/reports/series", s.api(s.handleSeries))
	mux.Handle("/api/reports/transactions", s.api(s.handleTransactions))
	mux.Handle("/api/reports/budgets", s.api(s.handleBudgets))
	mux.Handle("/api/reports/savings", s.api(s.handleSavings))
}

// collectionHandler serves GET (list) and POST (create) on a collection.
func collectionHandler[T any](s *Server, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
			return
		}
		userID := mustUserID(r)

		if r.Method == http.MethodGet {
			list, err := res.list(r.Context(), userID)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			if list == nil {
				list = []T{}
			}
			NewResponse().JSON(list).Write(w)
			return
		}

		created, err := res.create(r, userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
	}
}

// itemHandler serves GET, PUT (partial update) and DELETE on one record.
func itemHandler[T any](s *Server, res resource[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet, http.MethodPut, http.MethodDelete) {
			return
		}
		userID := mustUserID(r)
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		switch r.Method {
		case http.MethodGet:
			rec, err := res.get(r.Context(), userID, id)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			NewResponse().JSON(rec).Write(w)
		case http.MethodPut:
			rec, err := res.update(r, userID, id)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			NewResponse().JSON(rec).Write(w)
		case http.MethodDelete:
			if err := res.del(r.Context(), userID, id); err != nil {
				s.writeError(w, r, err)
				return
			}
			NewResponse().Status(http.StatusNoContent).Write(w)
		}
	}
}

func (s *Server) handleContribution(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req contributionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := req.amount()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g, err := s.records.Contribute(r.Context(), mustUserID(r), id, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewResponse().JSON(g).Write(w)
}

// mustUserID returns the id set by the auth middleware. Routes reaching a
// handler without it are a wiring bug.
func mustUserID(r *http.Request) int64 {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		panic("http: handler reached without authentication")
	}
	return id
}
