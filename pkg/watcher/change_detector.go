package watcher

import (
	"path/filepath"
	"sort"
	"strings"
)

// ChangeAnalysis says which templates a change touches and what has to be
// reloaded for them.
type ChangeAnalysis struct {
	Templates        []string
	ReloadWorkflows  bool
	ReloadRegistries bool
	ChangedFiles     []string
}

// AnalyzeChanges maps a batch of file changes to template names. A
// registry change leaves compiled graphs valid; a workflow change does not.
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{ChangedFiles: event.Paths}

	switch event.Type {
	case ChangeTypeWorkflow:
		analysis.ReloadWorkflows = true
		analysis.ReloadRegistries = true
	case ChangeTypeRegistry:
		analysis.ReloadRegistries = true
	}

	seen := make(map[string]bool)
	for _, p := range event.Paths {
		name := TemplateName(p)
		if !seen[name] {
			seen[name] = true
			analysis.Templates = append(analysis.Templates, name)
		}
	}
	sort.Strings(analysis.Templates)

	return analysis
}

// TemplateName is the file name without directory and extension.
func TemplateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
