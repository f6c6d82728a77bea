package http

import (
	"net/http"
	"strconv"

	"budgetapp/internal/core"
	"budgetapp/internal/dashboard"
	applog "budgetapp/internal/log"
)

type categoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func toCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Type: c.Type.String()}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	q, err := ParseTransactionQuery(r.URL.Query())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	entries, err := s.svc.Ledger.ListTransactions(r.Context(), owner, q)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(dashboard.Transactions(entries)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	e, err := s.svc.Ledger.GetTransaction(r.Context(), owner, id)
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(dashboard.Transaction(e)).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	var req TransactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	t, err := req.ToTransaction()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.svc.Ledger.CreateTransaction(r.Context(), owner, t)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+strconv.FormatInt(e.ID, 10)).
		JSON(dashboard.Transaction(e)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req TransactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	t, err := req.ToTransaction()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	t.ID = id

	e, err := s.svc.Ledger.UpdateTransaction(r.Context(), owner, t)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(dashboard.Transaction(e)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Ledger.DeleteTransaction(r.Context(), owner, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Ledger.Categories(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	out := make([]categoryView, len(cats))
	for i, c := range cats {
		out[i] = toCategoryView(c)
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	name, typ, err := req.Parse()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	c, err := s.svc.Ledger.CreateCategory(r.Context(), name, typ)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(toCategoryView(c)).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Ledger.DeleteCategory(r.Context(), id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	period, err := ParsePeriodParam(r.URL.Query(), "period", s.now())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	budgets, err := s.svc.Ledger.Budgets(r.Context(), owner, period)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(budgets).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	var req BudgetRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	period, err := req.Parse()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}

	saved, err := s.svc.Ledger.SetBudget(r.Context(), owner, req.CategoryID, period, req.Amount)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	views, err := s.svc.Ledger.Budgets(r.Context(), owner, period)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	for _, v := range views {
		if v.ID == saved.ID {
			NewResponse().JSON(v).Write(w)
			return
		}
	}
	s.fail(w, r, applog.OpUpdate, core.NotFound("budget", saved.ID))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	id, err := PathID(r, "id")
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Ledger.DeleteBudget(r.Context(), owner, id); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
