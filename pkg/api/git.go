package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quarryhq/quarry/pkg/gitops"
)

func (s *Server) handleGitStatus(w http.ResponseWriter, r *http.Request) {
	result, err := s.git.Status(r.Context(), chi.URLParam(r, "alias"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitDiff(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := gitops.DiffOptions{
		StatOnly:     query.Get("stat_only") == "true",
		FromRevision: query.Get("from_revision"),
		ToRevision:   query.Get("to_revision"),
		Path:         query.Get("path"),
	}
	if raw := query.Get("context_lines"); raw != "" {
		n := intParam(raw, 3)
		opts.ContextLines = &n
	}

	result, err := s.git.Diff(r.Context(), chi.URLParam(r, "alias"), requestUser(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitLog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := gitops.LogOptions{
		Limit:  intParam(query.Get("limit"), 10),
		Since:  query.Get("since"),
		Until:  query.Get("until"),
		Author: query.Get("author"),
		Branch: query.Get("branch"),
		Path:   query.Get("path"),
	}

	result, err := s.git.Log(r.Context(), chi.URLParam(r, "alias"), requestUser(r), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type filePathsRequest struct {
	FilePaths []string `json:"file_paths"`
}

func (s *Server) handleGitStage(w http.ResponseWriter, r *http.Request) {
	var req filePathsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Stage(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.FilePaths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitUnstage(w http.ResponseWriter, r *http.Request) {
	var req filePathsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Unstage(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.FilePaths)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message     string `json:"message"`
		AuthorEmail string `json:"author_email"`
		AuthorName  string `json:"author_name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Commit(r.Context(), chi.URLParam(r, "alias"), requestUser(r),
		req.Message, req.AuthorEmail, req.AuthorName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type remoteRequest struct {
	Remote string `json:"remote"`
	Branch string `json:"branch"`
}

func (s *Server) handleGitPush(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Push(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.Remote, req.Branch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitPull(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Pull(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.Remote, req.Branch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitFetch(w http.ResponseWriter, r *http.Request) {
	var req remoteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Fetch(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.Remote)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode              string `json:"mode"`
		CommitHash        string `json:"commit_hash"`
		ConfirmationToken string `json:"confirmation_token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Reset(r.Context(), chi.URLParam(r, "alias"), requestUser(r),
		req.Mode, req.CommitHash, req.ConfirmationToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.RequiresConfirmation {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	if req.Mode == "hard" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitClean(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmationToken string `json:"confirmation_token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.Clean(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.ConfirmationToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.RequiresConfirmation {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGitMergeAbort(w http.ResponseWriter, r *http.Request) {
	result, err := s.git.MergeAbort(r.Context(), chi.URLParam(r, "alias"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitCheckoutFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FilePath string `json:"file_path"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.CheckoutFile(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.FilePath)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitBranchList(w http.ResponseWriter, r *http.Request) {
	result, err := s.git.BranchList(r.Context(), chi.URLParam(r, "alias"), requestUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitBranchCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BranchName string `json:"branch_name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.BranchCreate(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.BranchName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGitBranchSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BranchName string `json:"branch_name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.BranchSwitch(r.Context(), chi.URLParam(r, "alias"), requestUser(r), req.BranchName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGitBranchDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BranchName        string `json:"branch_name"`
		ConfirmationToken string `json:"confirmation_token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.git.BranchDelete(r.Context(), chi.URLParam(r, "alias"), requestUser(r),
		req.BranchName, req.ConfirmationToken)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.RequiresConfirmation {
		writeJSON(w, http.StatusBadRequest, result)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
