package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/conformgo/internal/ctxlog"
	"github.com/vk/conformgo/internal/dag"
	"github.com/vk/conformgo/internal/fsutil"
	"github.com/vk/conformgo/internal/qname"
	"github.com/vk/conformgo/internal/registry"
)

// rootSchema is the top-level structure of a manifest file: any number of
// 'spec' and 'fn' blocks.
type rootSchema struct {
	Specs []*hclSpec `hcl:"spec,block"`
	Fns   []*hclFn   `hcl:"fn,block"`
}

type hclSpec struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclFn struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// Load parses every .hcl manifest under path, validates the whole set and
// defines the resulting specs and function signatures in reg. Nothing is
// defined unless the entire set is sound: unknown reference targets and
// reference cycles fail the load as a whole.
func Load(ctx context.Context, reg *registry.Registry, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading spec manifests.", "path", path)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		logger.Error("Failed to walk manifest directory", "path", path, "error", err)
		return err
	}
	if len(filePaths) == 0 {
		logger.Warn("No .hcl manifest files found in path", "path", path)
		return nil
	}
	logger.Debug("Found manifest files to load", "files", filePaths)

	parser := hclparse.NewParser()

	var specs []specEntry
	var fns []fnEntry
	for _, filePath := range filePaths {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse manifest %s: %w", filePath, diags)
		}
		fileSpecs, fileFns, err := decodeFile(ctx, hclFile, filePath)
		if err != nil {
			return err
		}
		specs = append(specs, fileSpecs...)
		fns = append(fns, fileFns...)
		logger.Debug("Decoded manifest file", "file", filePath, "specs", len(fileSpecs), "fns", len(fileFns))
	}

	if err := validateSet(ctx, reg, specs, fns); err != nil {
		return err
	}

	for _, entry := range specs {
		reg.Define(entry.Name, entry.Spec)
	}
	for _, entry := range fns {
		reg.DefineFnSpec(entry.Name, entry.Spec)
	}

	logger.Info("Manifests loaded.", "specs_defined", len(specs), "fn_specs_defined", len(fns))
	return nil
}

// decodeFile decodes all spec and fn blocks of one parsed manifest file.
func decodeFile(ctx context.Context, hclFile *hcl.File, filePath string) ([]specEntry, []fnEntry, error) {
	root := &rootSchema{}
	if diags := gohcl.DecodeBody(hclFile.Body, nil, root); diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to decode manifest %s: %w", filePath, diags)
	}

	var specs []specEntry
	for _, block := range root.Specs {
		if _, err := qname.ParseQualified(block.Name); err != nil {
			return nil, nil, fmt.Errorf("%s: spec %q: %w", filePath, block.Name, err)
		}
		b := &builder{ctx: ctx}
		s, err := b.buildExpr(block.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: spec %q: %w", filePath, block.Name, err)
		}
		specs = append(specs, specEntry{Name: block.Name, Spec: s, Refs: b.refs})
	}

	var fns []fnEntry
	for _, block := range root.Fns {
		if _, err := qname.ParseQualified(block.Name); err != nil {
			return nil, nil, fmt.Errorf("%s: fn %q: %w", filePath, block.Name, err)
		}
		b := &builder{ctx: ctx}
		s, err := b.buildFn(block.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: fn %q: %w", filePath, block.Name, err)
		}
		fns = append(fns, fnEntry{Name: block.Name, Spec: s, Refs: b.refs})
	}
	return specs, fns, nil
}

// validateSet performs the whole-set checks on decoded manifests: unique
// names, resolvable reference targets and an acyclic reference graph.
func validateSet(ctx context.Context, reg *registry.Registry, specs []specEntry, fns []fnEntry) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string

	defined := make(map[string]bool, len(specs))
	for _, entry := range specs {
		if defined[entry.Name] {
			errs = append(errs, fmt.Sprintf("spec '%s' is defined more than once", entry.Name))
			continue
		}
		defined[entry.Name] = true
	}

	known := func(name string) bool {
		if defined[name] {
			return true
		}
		_, ok := reg.LookupSpec(name)
		return ok
	}

	graph := dag.New()
	for _, entry := range specs {
		graph.AddSpec(entry.Name)
	}
	for _, entry := range specs {
		for _, ref := range entry.Refs {
			if !known(ref) {
				errs = append(errs, fmt.Sprintf("spec '%s' references unknown spec '%s'", entry.Name, ref))
				continue
			}
			if !defined[ref] {
				// Already registered specs cannot point back into this
				// manifest set, so they cannot extend a cycle.
				continue
			}
			if err := graph.AddReference(entry.Name, ref); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}
	for _, entry := range fns {
		for _, ref := range entry.Refs {
			if !known(ref) {
				errs = append(errs, fmt.Sprintf("fn '%s' references unknown spec '%s'", entry.Name, ref))
			}
		}
	}

	if err := graph.DetectCycles(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		logger.Error("Manifest validation failed.", "error_count", len(errs))
		return fmt.Errorf("manifest validation failed with %d error(s):\n - %s",
			len(errs), strings.Join(errs, "\n - "))
	}

	logger.Debug("Manifest validation passed.")
	return nil
}
