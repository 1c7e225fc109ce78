package hcl_adapter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/eyevinn-osaas/strom-sub001/internal/config"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load orchestrates the entire HCL loading process. Every file found under
// paths contributes to one flow model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	hclFiles, err := l.findFlowFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(hclFiles) == 0 {
		return nil, nil, fmt.Errorf("no .hcl flow files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	model := &config.Model{}
	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if err := l.merge(ctx, model, hclFile.Body, file); err != nil {
			return nil, nil, err
		}
	}
	if err := model.Validate(); err != nil {
		return nil, nil, err
	}

	logger.Debug("HCL loading complete.", "elements", len(model.Elements), "blocks", len(model.Blocks), "links", len(model.Links))
	return model, NewConverter(), nil
}

// Parse loads a flow from in-memory HCL source.
func (l *Loader) Parse(ctx context.Context, filename string, src []byte) (*config.Model, config.Converter, error) {
	hclFile, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	model := &config.Model{}
	if err := l.merge(ctx, model, hclFile.Body, filename); err != nil {
		return nil, nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, nil, err
	}
	return model, NewConverter(), nil
}

// merge decodes one file body and appends its contents to model.
func (l *Loader) merge(ctx context.Context, model *config.Model, body hcl.Body, file string) error {
	var root fileRoot
	diags := gohcl.DecodeBody(body, nil, &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
	}

	if root.Name != "" {
		if model.Name != "" && model.Name != root.Name {
			return fmt.Errorf("%s: flow name %q conflicts with %q", file, root.Name, model.Name)
		}
		model.Name = root.Name
	}
	for _, e := range root.Elements {
		el, err := l.translateElement(ctx, e)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		model.Elements = append(model.Elements, el)
	}
	for _, b := range root.Blocks {
		bl, err := l.translateBlock(ctx, b)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		model.Blocks = append(model.Blocks, bl)
	}
	for _, lk := range root.Links {
		model.Links = append(model.Links, &config.Link{From: lk.From, To: lk.To})
	}
	return nil
}

// findFlowFiles expands paths into .hcl files. Directories are walked
// recursively and their files sorted, so merge order is stable.
func (l *Loader) findFlowFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if filepath.Ext(p) != ".hcl" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		var found []string
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return files, nil
}
