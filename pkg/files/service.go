package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/types"
)

// RepoResolver resolves a user's repository alias to its working tree
// path. Satisfied by the activated repository manager.
type RepoResolver interface {
	RepoPath(username, userAlias string) string
}

// CreateResult is returned by Create
type CreateResult struct {
	Success     bool      `json:"success"`
	FilePath    string    `json:"file_path"`
	ContentHash string    `json:"content_hash"`
	SizeBytes   int       `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// EditResult is returned by Edit
type EditResult struct {
	Success     bool      `json:"success"`
	FilePath    string    `json:"file_path"`
	ContentHash string    `json:"content_hash"`
	ModifiedAt  time.Time `json:"modified_at"`
	ChangesMade int       `json:"changes_made"`
}

// DeleteResult is returned by Delete
type DeleteResult struct {
	Success   bool      `json:"success"`
	FilePath  string    `json:"file_path"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ReadResult is returned by Read
type ReadResult struct {
	FilePath    string `json:"file_path"`
	Content     string `json:"content"`
	ContentHash string `json:"content_hash"`
	SizeBytes   int    `json:"size_bytes"`
}

// Service performs hash-locked file operations inside activated
// repositories. Every path is sandbox-checked before any filesystem call
// and every write is atomic (temp file in the target directory, fsync,
// rename).
type Service struct {
	repos  RepoResolver
	logger zerolog.Logger
}

// NewService creates a file CRUD service
func NewService(repos RepoResolver) *Service {
	return &Service{
		repos:  repos,
		logger: log.WithComponent("files"),
	}
}

// Hash returns the lowercase hex SHA-256 of content
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Create writes a new file. It fails when the target already exists and
// creates missing parent directories.
func (s *Service) Create(repoAlias, filePath, content, username string) (*CreateResult, error) {
	fullPath, err := s.resolve(username, repoAlias, filePath)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	if _, err := os.Stat(fullPath); err == nil {
		metrics.FileOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, &types.ConflictError{Msg: fmt.Sprintf("file already exists: %s", filePath)}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, fmt.Errorf("failed to create parent directories for '%s': %w", filePath, err)
	}

	data := []byte(content)
	if err := atomicWrite(fullPath, data); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	metrics.FileOperationsTotal.WithLabelValues("create", "success").Inc()
	return &CreateResult{
		Success:     true,
		FilePath:    filePath,
		ContentHash: Hash(data),
		SizeBytes:   len(data),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Read returns the file content with its hash
func (s *Service) Read(repoAlias, filePath, username string) (*ReadResult, error) {
	fullPath, err := s.resolve(username, repoAlias, filePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.NotFoundError{Resource: "file", Name: filePath}
		}
		return nil, fmt.Errorf("failed to read file '%s': %w", filePath, err)
	}

	return &ReadResult{
		FilePath:    filePath,
		Content:     string(data),
		ContentHash: Hash(data),
		SizeBytes:   len(data),
	}, nil
}

// Edit replaces occurrences of oldString in the file after validating
// the optimistic lock. With replaceAll false, oldString must occur
// exactly once.
func (s *Service) Edit(repoAlias, filePath, oldString, newString, expectedHash string, replaceAll bool, username string) (*EditResult, error) {
	fullPath, err := s.resolve(username, repoAlias, filePath)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("edit", "error").Inc()
		return nil, err
	}

	current, err := os.ReadFile(fullPath)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("edit", "error").Inc()
		if os.IsNotExist(err) {
			return nil, &types.NotFoundError{Resource: "file", Name: filePath}
		}
		return nil, fmt.Errorf("failed to read file '%s': %w", filePath, err)
	}

	currentHash := Hash(current)
	if currentHash != expectedHash {
		metrics.FileOperationsTotal.WithLabelValues("edit", "conflict").Inc()
		return nil, &types.HashMismatchError{Path: filePath, Expected: expectedHash, Actual: currentHash}
	}

	content := string(current)
	var newContent string
	var changes int
	if replaceAll {
		changes = strings.Count(content, oldString)
		newContent = strings.ReplaceAll(content, oldString, newString)
	} else {
		occurrences := strings.Count(content, oldString)
		switch {
		case occurrences == 0:
			metrics.FileOperationsTotal.WithLabelValues("edit", "error").Inc()
			return nil, &types.ValidationError{Msg: fmt.Sprintf("string not found in file '%s'", filePath)}
		case occurrences > 1:
			metrics.FileOperationsTotal.WithLabelValues("edit", "error").Inc()
			return nil, &types.ValidationError{Msg: fmt.Sprintf(
				"string appears %d times in '%s', not unique; use replace_all to replace all occurrences",
				occurrences, filePath)}
		}
		newContent = strings.Replace(content, oldString, newString, 1)
		changes = 1
	}

	data := []byte(newContent)
	if err := atomicWrite(fullPath, data); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("edit", "error").Inc()
		return nil, err
	}

	metrics.FileOperationsTotal.WithLabelValues("edit", "success").Inc()
	return &EditResult{
		Success:     true,
		FilePath:    filePath,
		ContentHash: Hash(data),
		ModifiedAt:  time.Now().UTC(),
		ChangesMade: changes,
	}, nil
}

// Delete unlinks a file, optionally validating the hash first
func (s *Service) Delete(repoAlias, filePath, expectedHash, username string) (*DeleteResult, error) {
	fullPath, err := s.resolve(username, repoAlias, filePath)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("delete", "error").Inc()
		return nil, err
	}

	current, err := os.ReadFile(fullPath)
	if err != nil {
		metrics.FileOperationsTotal.WithLabelValues("delete", "error").Inc()
		if os.IsNotExist(err) {
			return nil, &types.NotFoundError{Resource: "file", Name: filePath}
		}
		return nil, fmt.Errorf("failed to read file '%s': %w", filePath, err)
	}

	if expectedHash != "" {
		currentHash := Hash(current)
		if currentHash != expectedHash {
			metrics.FileOperationsTotal.WithLabelValues("delete", "conflict").Inc()
			return nil, &types.HashMismatchError{Path: filePath, Expected: expectedHash, Actual: currentHash}
		}
	}

	if err := os.Remove(fullPath); err != nil {
		metrics.FileOperationsTotal.WithLabelValues("delete", "error").Inc()
		return nil, fmt.Errorf("failed to delete file '%s': %w", filePath, err)
	}

	metrics.FileOperationsTotal.WithLabelValues("delete", "success").Inc()
	return &DeleteResult{
		Success:   true,
		FilePath:  filePath,
		DeletedAt: time.Now().UTC(),
	}, nil
}

// ValidatePath applies the sandbox rules to a relative path before any
// filesystem call: no absolute paths, no '..' components, no .git
// component.
func ValidatePath(filePath string) error {
	if filePath == "" {
		return &types.ValidationError{Msg: "file path must not be empty"}
	}
	if filepath.IsAbs(filePath) {
		return &types.SandboxError{Msg: "absolute paths are not allowed, use repository-relative paths"}
	}

	for _, part := range strings.Split(filepath.ToSlash(filePath), "/") {
		if part == ".git" {
			return &types.SandboxError{Msg: "access to the .git directory is forbidden"}
		}
		if part == ".." {
			return &types.SandboxError{Msg: fmt.Sprintf("path traversal detected in '%s'", filePath)}
		}
	}
	return nil
}

// resolve validates the relative path, resolves it under the repository
// root and verifies it stays there after symlink expansion.
func (s *Service) resolve(username, repoAlias, filePath string) (string, error) {
	if err := ValidatePath(filePath); err != nil {
		return "", err
	}

	repoRoot := s.repos.RepoPath(username, repoAlias)
	if _, err := os.Stat(repoRoot); err != nil {
		return "", &types.NotFoundError{Resource: "activated repository", Name: repoAlias}
	}

	resolvedRoot, err := filepath.EvalSymlinks(repoRoot)
	if err != nil {
		return "", fmt.Errorf("failed to resolve repository root: %w", err)
	}

	fullPath := filepath.Join(repoRoot, filepath.FromSlash(filePath))

	// Resolve through the deepest existing ancestor so symlinked parents
	// cannot smuggle the path outside the repository.
	resolved, err := resolveExisting(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path '%s': %w", filePath, err)
	}
	if resolved != resolvedRoot && !strings.HasPrefix(resolved, resolvedRoot+string(filepath.Separator)) {
		return "", &types.SandboxError{Msg: fmt.Sprintf("path '%s' escapes the repository root", filePath)}
	}

	return fullPath, nil
}

// resolveExisting expands symlinks on the longest existing prefix of
// path and rejoins the remaining components.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// atomicWrite writes data through a temp file in the target directory,
// fsyncs and renames into place. The temp file is removed on any error.
func atomicWrite(fullPath string, data []byte) error {
	dir := filepath.Dir(fullPath)
	tmp, err := os.CreateTemp(dir, ".tmp_*_"+filepath.Base(fullPath))
	if err != nil {
		return fmt.Errorf("failed to create temp file in '%s': %w", dir, err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		if werr != nil {
			return fmt.Errorf("failed to write temp file: %w", werr)
		}
		return fmt.Errorf("failed to close temp file: %w", cerr)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace '%s': %w", fullPath, err)
	}
	return nil
}
