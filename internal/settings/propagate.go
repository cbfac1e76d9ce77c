// Package settings propagates the assistant settings document from source
// to target, optionally stamping it with a task-list identifier synthesized
// from the remote URL and branch (spec.md §4.7).
package settings

import (
	"encoding/json"
	"fmt"
	"os"
)

const taskListIDKey = "CLAUDE_CODE_TASK_LIST_ID"

// Propagate reads the settings document at sourcePath (if present),
// merges it into any pre-existing document at targetPath, optionally sets
// env.CLAUDE_CODE_TASK_LIST_ID to the identifier synthesized from
// remoteURL and branch (when both are non-empty), and rewrites targetPath
// with 2-space indentation and a trailing newline.
func Propagate(sourcePath, targetPath, remoteURL, branch string) error {
	merged, err := loadDocument(targetPath)
	if err != nil {
		return err
	}

	source, err := loadDocument(sourcePath)
	if err != nil {
		return err
	}
	for k, v := range source {
		merged[k] = v
	}

	if remoteURL != "" && branch != "" {
		id, err := Identifier(remoteURL, branch)
		if err != nil {
			return fmt.Errorf("synthesize task list id: %w", err)
		}
		env, _ := merged["env"].(map[string]any)
		if env == nil {
			env = map[string]any{}
		}
		env[taskListIDKey] = id
		merged["env"] = env
	}

	return writeDocument(targetPath, merged)
}

// loadDocument reads a JSON object from path. A missing file yields an
// empty document rather than an error, since neither the source settings
// file nor a pre-existing target file is guaranteed to exist.
func loadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc map[string]any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
