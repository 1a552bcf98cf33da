// Package config provides the workspace configuration loader for mono.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.trai.ch/mono/internal/core/domain"
	"go.trai.ch/mono/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Loader implements ports.WorkspaceLoader on top of YAML files: one
// mono.work.yaml at the workspace root and one mono.yaml per package.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

var validNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// DiscoverRoot walks upward from cwd until it finds a directory containing
// the workspace file.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	currentDir, err := filepath.Abs(cwd)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrConfigNotFound.Error())
	}

	for {
		workfilePath := filepath.Join(currentDir, domain.WorkFileName)
		if _, err := os.Stat(workfilePath); err == nil {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	return "", zerr.With(domain.ErrConfigNotFound, "cwd", cwd)
}

// Load discovers the workspace root above cwd and builds the full workspace:
// every package the workfile globs name, with pipeline defaults merged into
// each package's task declarations.
func (l *Loader) Load(cwd string) (*domain.Workspace, error) {
	root, err := l.DiscoverRoot(cwd)
	if err != nil {
		return nil, err
	}

	workfile, err := ReadWorkfile(root)
	if err != nil {
		return nil, err
	}

	packageDirs, err := l.resolvePackageDirs(root, workfile.Packages)
	if err != nil {
		return nil, err
	}

	ws := domain.NewWorkspace(root)
	for _, dir := range packageDirs {
		if err := l.loadPackage(ws, root, dir, workfile.Pipeline); err != nil {
			return nil, err
		}
	}

	if err := ws.Validate(); err != nil {
		return nil, err
	}

	return ws, nil
}

// ReadWorkfile parses the workspace file under root.
func ReadWorkfile(root string) (*Workfile, error) {
	path := filepath.Join(root, domain.WorkFileName)
	// #nosec G304 -- path is anchored at the discovered workspace root
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
	}

	var workfile Workfile
	if err := yaml.Unmarshal(data, &workfile); err != nil {
		return nil, zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
	}

	return &workfile, nil
}

// resolvePackageDirs expands the workfile's package globs into a sorted,
// deduplicated list of directories containing a package file.
func (l *Loader) resolvePackageDirs(root string, patterns []string) ([]string, error) {
	dirs := make(map[string]struct{})

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, zerr.Wrap(err, "glob pattern failed: "+pattern)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				continue
			}
			dirs[match] = struct{}{}
		}
	}

	// Sort for determinism; map iteration order is random.
	sorted := make([]string, 0, len(dirs))
	for d := range dirs {
		sorted = append(sorted, d)
	}
	slices.Sort(sorted)

	return sorted, nil
}

func (l *Loader) loadPackage(
	ws *domain.Workspace,
	root, dir string,
	pipeline map[string]*TaskDTO,
) error {
	relPath, _ := filepath.Rel(root, dir)

	packagefilePath := filepath.Join(dir, domain.PackageFileName)
	if _, err := os.Stat(packagefilePath); os.IsNotExist(err) {
		l.Logger.Warn(fmt.Sprintf("%s missing in package %s, skipping", domain.PackageFileName, relPath))
		return nil
	}

	// #nosec G304 -- path is constructed from validated package directories
	data, err := os.ReadFile(packagefilePath)
	if err != nil {
		err = zerr.Wrap(err, domain.ErrConfigReadFailed.Error())
		return zerr.With(err, "directory", relPath)
	}

	var pkgfile Packagefile
	if err := yaml.Unmarshal(data, &pkgfile); err != nil {
		err = zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
		return zerr.With(err, "directory", relPath)
	}

	if err := validatePackagefile(&pkgfile, relPath); err != nil {
		return err
	}

	pkg := &domain.Package{
		Name:      domain.NewInternedString(pkgfile.Name),
		Dir:       domain.NewInternedString(dir),
		DependsOn: domain.NewInternedStrings(pkgfile.DependsOn),
		Tasks:     make(map[string]*domain.TaskDefinition, len(pkgfile.Tasks)),
	}

	for taskName := range pkgfile.Tasks {
		if err := validateTaskName(taskName); err != nil {
			return zerr.With(err, "package", pkgfile.Name)
		}

		dto := pipeline[taskName].merge(pkgfile.Tasks[taskName])
		task, err := buildTask(taskName, dto)
		if err != nil {
			return zerr.With(err, "package", pkgfile.Name)
		}
		pkg.Tasks[taskName] = task
	}

	return ws.AddPackage(pkg)
}

func validatePackagefile(pkgfile *Packagefile, relPath string) error {
	if pkgfile.Name == "" {
		return zerr.With(domain.ErrMissingPackageName, "directory", relPath)
	}

	if !validNameRegex.MatchString(pkgfile.Name) {
		err := zerr.With(domain.ErrInvalidPackageName, "package", pkgfile.Name)
		return zerr.With(err, "directory", relPath)
	}

	return nil
}

func validateTaskName(name string) error {
	if strings.ContainsAny(name, domain.NodeSeparator+domain.TopologicalPrefix) {
		return zerr.With(domain.ErrReservedTaskName, "task", name)
	}
	if !validNameRegex.MatchString(name) {
		return zerr.With(domain.ErrInvalidTaskName, "task", name)
	}
	return nil
}

// buildTask converts the merged DTO into the immutable domain definition.
func buildTask(name string, dto *TaskDTO) (*domain.TaskDefinition, error) {
	if dto == nil {
		dto = &TaskDTO{}
	}

	var timeout time.Duration
	if dto.Timeout != "" {
		var err error
		timeout, err = time.ParseDuration(dto.Timeout)
		if err != nil {
			err = zerr.Wrap(err, domain.ErrConfigParseFailed.Error())
			return nil, zerr.With(err, "task", name)
		}
	}

	refs := make([]domain.TaskRef, 0, len(dto.DependsOn))
	for _, dep := range dto.DependsOn {
		refs = append(refs, domain.ParseTaskRef(dep))
	}

	return &domain.TaskDefinition{
		Name:        domain.NewInternedString(name),
		Command:     dto.Cmd,
		Inputs:      domain.NewInternedStrings(dto.Inputs),
		Outputs:     domain.NewInternedStrings(dto.Outputs),
		DependsOn:   refs,
		Env:         dto.Env,
		Environment: dto.Environment,
		Timeout:     timeout,
	}, nil
}

var _ ports.WorkspaceLoader = (*Loader)(nil)
