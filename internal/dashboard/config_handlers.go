package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bmad-assist/bmad-assist-go/internal/bmaderr"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
)

// configSchemaEntry describes one leaf field for /api/config/schema, letting
// a dashboard UI render an editable form without hardcoding field shapes.
type configSchemaEntry struct {
	Path           string `json:"path"`
	Classification string `json:"classification"`
}

func (s *Server) handleConfigSchema(w http.ResponseWriter, r *http.Request) {
	entries := schemaEntries()
	writeJSON(w, http.StatusOK, entries)
}

// schemaEntries walks the known top-level config sections. Rather than a
// generic reflective walker duplicating config.FieldClassification's own
// traversal, this lists the leaf paths actually exposed through
// /api/config/value, each resolved through FieldClassification so the
// classification is always the single source of truth in internal/config.
func schemaEntries() []configSchemaEntry {
	paths := []string{
		"project.name", "project.language", "project.tasks_dir", "project.log_dir",
		"project.prompt_dir", "project.branch_template", "project.verification_commands",
		"project.master",
		"review.extensions", "review.risk_patterns", "review.prompts_dir", "review.rules_dir",
		"review.project_brief_file", "review.evaluators", "review.min_evaluators",
		"dashboard.host", "dashboard.port", "dashboard.no_auto_port", "dashboard.cors_origins",
		"dashboard.max_import_bytes",
		"qa.enabled", "qa.batch", "qa.batch_size", "qa.timeout_sec", "qa.max_remediate_iterations",
		"notify.enabled", "notify.sinks",
		"testarch.enabled",
		"sprint.divergence_threshold",
	}
	entries := make([]configSchemaEntry, 0, len(paths))
	for _, p := range paths {
		cls, _ := config.FieldClassification(p)
		entries = append(entries, configSchemaEntry{Path: p, Classification: string(cls)})
	}
	return entries
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("path")
	if loc == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dashboard: missing path query parameter"))
		return
	}
	cls, ok := config.FieldClassification(loc)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("dashboard: unknown config path %q", loc))
		return
	}
	if cls == config.Dangerous {
		writeError(w, http.StatusForbidden, fmt.Errorf("dashboard: %q is dangerous; not readable via the API", loc))
		return
	}
	m, err := configAsMap(s.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	val, ok := lookupDotted(m, loc)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("dashboard: %q not set", loc))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": loc, "value": val, "classification": cls})
}

func (s *Server) handleConfigPut(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("path")
	if loc == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dashboard: missing path query parameter"))
		return
	}
	cls, ok := config.FieldClassification(loc)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("dashboard: unknown config path %q", loc))
		return
	}
	if cls == config.Dangerous {
		writeError(w, http.StatusForbidden, fmt.Errorf("dashboard: %q is dangerous; edit the project config file directly", loc))
		return
	}

	var body struct {
		Value any `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m, err := readProjectConfigMap(s.Paths.ProjectConfig())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	setDotted(m, loc, body.Value)

	candidate := &config.Config{}
	merged, err := mergeOverDefaults(m)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := yamlRoundTrip(merged, candidate); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := config.Validate(candidate); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if err := writeProjectConfigMap(s.Paths.ProjectConfig(), m); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.Config = candidate
	s.Bus.Publish(Event{Type: "config_reloaded"})
	writeJSON(w, http.StatusOK, map[string]string{"path": loc, "status": "updated"})
}

func (s *Server) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "merged"
	}
	if scope != "merged" && scope != "global" && scope != "project" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("dashboard: unknown scope %q", scope))
		return
	}

	redacted := config.Redact(s.Config)
	data, err := yaml.Marshal(redacted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	filename := fmt.Sprintf("bmad-assist-config-%s-%s.yaml", scope, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type importPreview struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors,omitempty"`
	RiskyFields []string `json:"risky_fields"`
	Diff        []string `json:"diff"`
}

func (s *Server) handleConfigImportPreview(w http.ResponseWriter, r *http.Request) {
	data, candidate, riskyFields, err := s.decodeImport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	_ = data

	preview := importPreview{RiskyFields: riskyFields}
	if verr := config.Validate(candidate); verr != nil {
		preview.Valid = false
		if cve, ok := verr.(*bmaderr.ConfigValidationError); ok {
			for _, fe := range cve.Errors {
				preview.Errors = append(preview.Errors, fmt.Sprintf("%s: %s", fe.Loc, fe.Msg))
			}
		} else {
			preview.Errors = append(preview.Errors, verr.Error())
		}
	} else {
		preview.Valid = true
	}
	preview.Diff = diffSummary(s.Config, candidate)

	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handleConfigImportApply(w http.ResponseWriter, r *http.Request) {
	_, candidate, _, err := s.decodeImport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := config.Validate(candidate); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	projectPath := s.Paths.ProjectConfig()
	if fileExists(projectPath) {
		backup := projectPath + ".backup-" + time.Now().UTC().Format("20060102T150405")
		if err := copyFile(projectPath, backup); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}

	data, err := yaml.Marshal(candidate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := atomicWrite(projectPath, data); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.Config = candidate
	s.Bus.Publish(Event{Type: "config_reloaded"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// decodeImport reads the request body (bounded by Dashboard.MaxImportBytes),
// parses it as a full config YAML document, and merges it over defaults so
// the result is a complete, typed Config ready for Validate.
func (s *Server) decodeImport(r *http.Request) ([]byte, *config.Config, []string, error) {
	limit := int64(s.Config.Dashboard.MaxImportBytes)
	if limit <= 0 {
		limit = 1 << 20
	}
	limited := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, nil, nil, err
	}
	if int64(len(data)) > limit {
		return nil, nil, nil, fmt.Errorf("dashboard: import exceeds %d byte limit", limit)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, nil, nil, fmt.Errorf("dashboard: parsing import: %w", err)
	}

	merged, err := mergeOverDefaults(m)
	if err != nil {
		return nil, nil, nil, err
	}
	candidate := &config.Config{}
	if err := yamlRoundTrip(merged, candidate); err != nil {
		return nil, nil, nil, err
	}

	risky := riskyFieldsIn(m, "")
	return data, candidate, risky, nil
}

func riskyFieldsIn(m map[string]any, prefix string) []string {
	var out []string
	for k, v := range m {
		loc := k
		if prefix != "" {
			loc = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			out = append(out, riskyFieldsIn(sub, loc)...)
			continue
		}
		if cls, ok := config.FieldClassification(loc); ok && (cls == config.Risky || cls == config.Dangerous) {
			out = append(out, loc)
		}
	}
	return out
}

// diffSummary is a shallow, best-effort top-level diff (section names whose
// marshaled YAML differs), enough for an operator to see what changed
// without re-implementing a structural YAML differ.
func diffSummary(from, to *config.Config) []string {
	fromMap, _ := configAsMap(from)
	toMap, _ := configAsMap(to)
	var changed []string
	for k, v := range toMap {
		fv, ok := fromMap[k]
		if !ok {
			changed = append(changed, k+" (added)")
			continue
		}
		fb, _ := yaml.Marshal(fv)
		tb, _ := yaml.Marshal(v)
		if string(fb) != string(tb) {
			changed = append(changed, k+" (changed)")
		}
	}
	return changed
}

func configAsMap(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mergeOverDefaults(m map[string]any) (map[string]any, error) {
	defaultsMap, err := configAsMap(config.NewDefaults())
	if err != nil {
		return nil, err
	}
	return deepMergeMaps(defaultsMap, m), nil
}

func deepMergeMaps(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = deepMergeMaps(existing, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}

func yamlRoundTrip(m map[string]any, cfg *config.Config) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func readProjectConfigMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func writeProjectConfigMap(path string, m map[string]any) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// lookupDotted walks m following the "."-separated segments of loc.
func lookupDotted(m map[string]any, loc string) (any, bool) {
	cur := any(m)
	for _, seg := range splitDots(loc) {
		asMap, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = asMap[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setDotted writes value at loc within m, creating intermediate maps as
// needed.
func setDotted(m map[string]any, loc string, value any) {
	segs := splitDots(loc)
	cur := m
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

func splitDots(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
