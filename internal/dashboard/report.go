package dashboard

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bmad-assist/bmad-assist-go/internal/paths"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// containedPath resolves requested (relative to root) and verifies it does
// not escape root via ".." segments or a symlink: the path must stay
// contained in the project root and symlinks are rejected.
func containedPath(root, requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("dashboard: empty path")
	}
	joined := filepath.Join(root, requested)
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	cleanJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if cleanJoined != cleanRoot && !strings.HasPrefix(cleanJoined, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("dashboard: path %q escapes project root", requested)
	}

	info, err := os.Lstat(cleanJoined)
	if err != nil {
		return "", err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", fmt.Errorf("dashboard: path %q is a symlink, rejected", requested)
	}
	// A symlinked directory below root is rejected as well.
	realRoot, err := filepath.EvalSymlinks(cleanRoot)
	if err != nil {
		return "", err
	}
	realJoined, err := filepath.EvalSymlinks(cleanJoined)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(cleanRoot, cleanJoined)
	if err != nil || realJoined != filepath.Join(realRoot, rel) {
		return "", fmt.Errorf("dashboard: path %q goes through a symlink, rejected", requested)
	}
	return cleanJoined, nil
}

func (s *Server) handleReportContent(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("path")
	resolved, err := containedPath(s.Paths.ProjectRoot, requested)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	epic := chi.URLParam(r, "epic")
	story := chi.URLParam(r, "story")
	phase := chi.URLParam(r, "phase")

	if s.Prompt == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("dashboard: prompt preview unavailable in this process"))
		return
	}
	prompt, err := s.Prompt(epic, story, phase)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(prompt))
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	epicStr := chi.URLParam(r, "epic")
	storyStr := chi.URLParam(r, "story")
	storyNum, err := strconv.Atoi(storyStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dashboard: story %q is not numeric", storyStr))
		return
	}
	epic := paths.ParseEpicID(epicStr)

	evaluators := s.Config.Review.Evaluators
	found := map[string]string{}
	for _, evaluator := range evaluators {
		p := s.Paths.ValidationFile(epic, storyNum, evaluator)
		if fileExists(p) {
			data, err := os.ReadFile(p)
			if err == nil {
				found[evaluator] = string(data)
			}
		}
	}
	if len(found) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("dashboard: no validation reports for %s-%d", epicStr, storyNum))
		return
	}
	writeJSON(w, http.StatusOK, found)
}
