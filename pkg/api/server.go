package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/activated"
	"github.com/quarryhq/quarry/pkg/files"
	"github.com/quarryhq/quarry/pkg/gitops"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/listing"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/types"
)

// Server is the thin REST adaptor over the managers. It carries no
// business logic: handlers decode, delegate and map results and error
// kinds onto HTTP statuses.
type Server struct {
	golden    *golden.Manager
	activated *activated.Manager
	jobs      *jobs.Manager
	files     *files.Service
	git       *gitops.Service
	listing   *listing.Service
	logger    zerolog.Logger
}

// NewServer creates the REST adaptor
func NewServer(goldenManager *golden.Manager, activatedManager *activated.Manager, jobManager *jobs.Manager, fileService *files.Service, gitService *gitops.Service, listingService *listing.Service) *Server {
	return &Server{
		golden:    goldenManager,
		activated: activatedManager,
		jobs:      jobManager,
		files:     fileService,
		git:       gitService,
		listing:   listingService,
		logger:    log.WithComponent("api"),
	}
}

// Router builds the HTTP route tree
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(correlationMiddleware)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireUser)

		r.Route("/admin/golden-repos", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleGoldenList)
			r.Post("/", s.handleGoldenAdd)
			r.Get("/{alias}", s.handleGoldenGet)
			r.Post("/{alias}/refresh", s.handleGoldenRefresh)
			r.Delete("/{alias}", s.handleGoldenRemove)
		})

		r.Route("/repos", func(r chi.Router) {
			r.Get("/", s.handleRepoList)
			r.Post("/activate", s.handleActivate)
			r.Delete("/{alias}", s.handleDeactivate)
			r.Put("/{alias}/branch", s.handleSwitchBranch)
			r.Post("/{alias}/sync", s.handleSync)
			r.Post("/{alias}/reindex", s.handleReindex)
			r.Get("/{alias}/branches", s.handleBranches)

			r.Route("/{alias}/files", func(r chi.Router) {
				r.Get("/", s.handleFileRead)
				r.Post("/", s.handleFileCreate)
				r.Put("/", s.handleFileEdit)
				r.Delete("/", s.handleFileDelete)
			})

			r.Route("/{alias}/git", func(r chi.Router) {
				r.Get("/status", s.handleGitStatus)
				r.Get("/diff", s.handleGitDiff)
				r.Get("/log", s.handleGitLog)
				r.Post("/stage", s.handleGitStage)
				r.Post("/unstage", s.handleGitUnstage)
				r.Post("/commit", s.handleGitCommit)
				r.Post("/push", s.handleGitPush)
				r.Post("/pull", s.handleGitPull)
				r.Post("/fetch", s.handleGitFetch)
				r.Post("/reset", s.handleGitReset)
				r.Post("/clean", s.handleGitClean)
				r.Post("/merge-abort", s.handleGitMergeAbort)
				r.Post("/checkout-file", s.handleGitCheckoutFile)
				r.Get("/branches", s.handleGitBranchList)
				r.Post("/branches", s.handleGitBranchCreate)
				r.Put("/branches", s.handleGitBranchSwitch)
				r.Delete("/branches", s.handleGitBranchDelete)
			})
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleJobList)
			r.Get("/{jobID}", s.handleJobStatus)
			r.Delete("/{jobID}", s.handleJobCancel)
		})

		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestUser(r) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "missing authenticated user"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestIsAdmin(r) {
			writeJSON(w, http.StatusForbidden, errorBody{Detail: "administrator access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &types.ValidationError{Msg: "invalid request body: " + err.Error()}
	}
	return nil
}

// asyncAccepted is the 202 payload for submitted jobs
type asyncAccepted struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

func writeAccepted(w http.ResponseWriter, jobID, message string) {
	writeJSON(w, http.StatusAccepted, asyncAccepted{JobID: jobID, Message: message})
}

// --- golden repositories ---

func (s *Server) handleGoldenList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.listing.GoldenRepos())
}

func (s *Server) handleGoldenGet(w http.ResponseWriter, r *http.Request) {
	detail, err := s.listing.GoldenRepo(chi.URLParam(r, "alias"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleGoldenAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RepoURL         string            `json:"repo_url"`
		Alias           string            `json:"alias"`
		DefaultBranch   string            `json:"default_branch"`
		EnableTemporal  bool              `json:"enable_temporal"`
		TemporalOptions map[string]string `json:"temporal_options"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	jobID, err := s.golden.Add(req.RepoURL, req.Alias, req.DefaultBranch, requestUser(r), golden.AddOptions{
		EnableTemporal:  req.EnableTemporal,
		TemporalOptions: req.TemporalOptions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Golden repository registration submitted")
}

func (s *Server) handleGoldenRefresh(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.golden.Refresh(chi.URLParam(r, "alias"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Golden repository refresh submitted")
}

func (s *Server) handleGoldenRemove(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.golden.Remove(chi.URLParam(r, "alias"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Golden repository removal submitted")
}

// --- activated repositories ---

func (s *Server) handleRepoList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.listing.UserRepos(requestUser(r)))
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GoldenAlias string `json:"golden_repo_alias"`
		Branch      string `json:"branch"`
		UserAlias   string `json:"user_alias"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	jobID, err := s.activated.Activate(requestUser(r), req.GoldenAlias, req.Branch, req.UserAlias)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Repository activation submitted")
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.activated.Deactivate(requestUser(r), chi.URLParam(r, "alias"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Repository deactivation submitted")
}

func (s *Server) handleSwitchBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Branch string `json:"branch"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.activated.SwitchBranch(r.Context(), requestUser(r), chi.URLParam(r, "alias"), req.Branch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.activated.SyncWithGolden(r.Context(), requestUser(r), chi.URLParam(r, "alias"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IndexTypes []string `json:"index_types"`
		Clear      bool     `json:"clear"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	jobID, err := s.activated.Reindex(requestUser(r), chi.URLParam(r, "alias"), req.IndexTypes, req.Clear)
	if err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w, jobID, "Reindex submitted")
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	result, err := s.activated.ListBranches(r.Context(), requestUser(r), chi.URLParam(r, "alias"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- files ---

func (s *Server) handleFileRead(w http.ResponseWriter, r *http.Request) {
	result, err := s.files.Read(chi.URLParam(r, "alias"), r.URL.Query().Get("path"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFileCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath string `json:"file_path"`
		Content  string `json:"content"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.files.Create(chi.URLParam(r, "alias"), req.FilePath, req.Content, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleFileEdit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath    string `json:"file_path"`
		OldString   string `json:"old_string"`
		NewString   string `json:"new_string"`
		ContentHash string `json:"content_hash"`
		ReplaceAll  bool   `json:"replace_all"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.files.Edit(chi.URLParam(r, "alias"), req.FilePath, req.OldString, req.NewString,
		req.ContentHash, req.ReplaceAll, requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	_, err := s.files.Delete(chi.URLParam(r, "alias"), query.Get("path"), query.Get("content_hash"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- jobs ---

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := intParam(query.Get("limit"), 10)
	offset := intParam(query.Get("offset"), 0)
	statusFilter := types.JobStatus(query.Get("status"))

	writeJSON(w, http.StatusOK, s.jobs.List(requestUser(r), statusFilter, limit, offset))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(chi.URLParam(r, "jobID"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	result := s.jobs.Cancel(chi.URLParam(r, "jobID"), requestUser(r))
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// --- stats ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.listing.Stats())
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
