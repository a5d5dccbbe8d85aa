package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vk/conformgo/internal/ctxlog"
	"github.com/vk/conformgo/internal/spec"
)

// check conforms every configured document against the configured spec,
// printing the conformed value or the explain problems per document. A
// non-nil error is returned when any document fails, so the process exits
// non-zero.
func (a *App) check(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Check starting.", "spec", a.config.SpecName, "documents", len(a.config.DocPaths))

	failed := 0
	for _, docPath := range a.config.DocPaths {
		value, err := readDocument(docPath)
		if err != nil {
			return fmt.Errorf("failed to read document %s: %w", docPath, err)
		}

		cv, err := a.registry.Conform(a.config.SpecName, value)
		if err != nil {
			return fmt.Errorf("failed to conform %s: %w", docPath, err)
		}

		if !spec.IsInvalid(cv) {
			rendered, err := json.MarshalIndent(cv, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render conformed value of %s: %w", docPath, err)
			}
			fmt.Fprintf(a.outW, "%s: valid\n%s\n", docPath, rendered)
			continue
		}

		failed++
		problems, err := a.registry.Explain(a.config.SpecName, value)
		if err != nil {
			return fmt.Errorf("failed to explain %s: %w", docPath, err)
		}
		fmt.Fprintf(a.outW, "%s: invalid\n", docPath)
		for _, p := range problems {
			fmt.Fprintf(a.outW, "  %s\n", p.String())
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) did not conform to %s",
			failed, len(a.config.DocPaths), a.config.SpecName)
	}
	logger.Info("All documents conform.", "count", len(a.config.DocPaths))
	return nil
}

// readDocument decodes one JSON or YAML document into native Go values.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var value any
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
	default:
		// YAML is a JSON superset, so .yaml/.yml and everything else go
		// through the YAML decoder.
		if err := yaml.Unmarshal(data, &value); err != nil {
			return nil, err
		}
	}
	return value, nil
}
