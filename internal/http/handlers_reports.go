package http

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"budgetapp/internal/core"
	"budgetapp/internal/dashboard"
	applog "budgetapp/internal/log"
)

const maxImportBytes = 10 << 20

// handleImport accepts a CSV body or a multipart upload in field "file".
// The batch is all-or-nothing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			s.fail(w, r, applog.OpImport, &core.ValidationError{Field: "file", Reason: "multipart field \"file\" is required"})
			return
		}
		defer file.Close()
		src = file
	}

	res, err := s.svc.Imports.Import(r.Context(), owner, src)
	if err != nil {
		s.fail(w, r, applog.OpImport, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(res).Write(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	var buf bytes.Buffer
	if err := s.svc.Imports.Export(r.Context(), owner, &buf); err != nil {
		s.fail(w, r, applog.OpExport, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", `attachment; filename="transactions.csv"`).
		Raw("text/csv; charset=utf-8", buf.Bytes()).
		Write(w)
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	groups, err := s.svc.Imports.Duplicates(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(groups).Write(w)
}

type reportsIndex struct {
	// Periods are the months with transactions, newest first.
	Periods []string `json:"periods"`
	// Stored are the periods with a generated report.
	Stored []string `json:"stored"`
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	periods, err := s.svc.Reports.Periods(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	stored, err := s.svc.Reports.Stored(r.Context(), owner)
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}

	idx := reportsIndex{Periods: periods, Stored: make([]string, len(stored))}
	if idx.Periods == nil {
		idx.Periods = []string{}
	}
	for i, rep := range stored {
		idx.Stored[i] = rep.Period
	}
	NewResponse().JSON(idx).Write(w)
}

// handleReport refreshes the report according to the configured policy
// and returns it.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpRefresh, err)
		return
	}
	rep, err := s.svc.Reports.Refresh(r.Context(), owner, r.PathValue("period"))
	if err != nil {
		s.fail(w, r, applog.OpRefresh, err)
		return
	}
	NewResponse().JSON(dashboard.BuildReportView(rep)).Write(w)
}

// handleReportPDF renders an already generated report.
func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	owner, err := s.owner(r)
	if err != nil {
		s.fail(w, r, applog.OpRender, err)
		return
	}
	period := r.PathValue("period")
	var buf bytes.Buffer
	if err := s.svc.Reports.PDF(r.Context(), owner, period, &buf); err != nil {
		s.fail(w, r, applog.OpRender, err)
		return
	}
	NewResponse().
		Header("Content-Disposition", `attachment; filename="report-`+period+`.pdf"`).
		Raw("application/pdf", buf.Bytes()).
		Write(w)
}
