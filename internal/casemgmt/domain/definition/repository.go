package definition

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// ErrNotFound indicates the requested case definition is not deployed.
var ErrNotFound = apperrors.New(apperrors.CodeCaseDefinitionNotFound, "case definition not found")

// Repository resolves case definitions by deployment and definition id.
type Repository interface {
	Lookup(ctx context.Context, deploymentID, definitionID string) (CaseDefinition, error)
}

// StaticRepository is an in-memory Repository, used by tests and embedders
// that assemble definitions programmatically.
type StaticRepository struct {
	mu   sync.RWMutex
	defs map[string]CaseDefinition
}

// NewStaticRepository creates an empty StaticRepository.
func NewStaticRepository() *StaticRepository {
	return &StaticRepository{defs: map[string]CaseDefinition{}}
}

// Add normalizes and registers a definition, replacing any previous one with
// the same deployment and definition id.
func (r *StaticRepository) Add(def CaseDefinition) error {
	normalized, err := Normalize(def)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[repositoryKey(normalized.DeploymentID, normalized.ID)] = normalized
	return nil
}

// Lookup implements Repository.
func (r *StaticRepository) Lookup(ctx context.Context, deploymentID, definitionID string) (CaseDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[repositoryKey(strings.TrimSpace(deploymentID), strings.TrimSpace(definitionID))]
	if !ok {
		return CaseDefinition{}, ErrNotFound
	}
	return def, nil
}

// All returns every registered definition, ordered by deployment then id.
func (r *StaticRepository) All() []CaseDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.defs))
	for key := range r.defs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	defs := make([]CaseDefinition, 0, len(keys))
	for _, key := range keys {
		defs = append(defs, r.defs[key])
	}
	return defs
}

func repositoryKey(deploymentID, definitionID string) string {
	return deploymentID + "\x00" + definitionID
}

// deploymentFile is the YAML shape of one deployment's case definitions.
type deploymentFile struct {
	Deployment string `yaml:"deployment"`
	Cases      []struct {
		ID             string `yaml:"id"`
		Name           string `yaml:"name"`
		Prefix         string `yaml:"prefix"`
		PrimaryProcess string `yaml:"primary_process"`
		Roles          []struct {
			Name        string `yaml:"name"`
			Cardinality int    `yaml:"cardinality"`
		} `yaml:"roles"`
		Stages []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"stages"`
		Milestones []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"milestones"`
		AdHocFragments []string `yaml:"adhoc_fragments"`
		FileSchema     string   `yaml:"case_file_schema"`
	} `yaml:"cases"`
}

// LoadDir loads every *.yaml deployment file under dir into a
// StaticRepository.
func LoadDir(dir string) (*StaticRepository, error) {
	return loadFS(os.DirFS(dir))
}

func loadFS(fsys fs.FS) (*StaticRepository, error) {
	paths, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob definition files: %w", err)
	}
	sort.Strings(paths)

	repo := NewStaticRepository()
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read definitions %s: %w", path, err)
		}
		var file deploymentFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse definitions %s: %w", path, err)
		}
		deployment := strings.TrimSpace(file.Deployment)
		if deployment == "" {
			return nil, fmt.Errorf("definitions %s: deployment is required", path)
		}
		for _, entry := range file.Cases {
			def := CaseDefinition{
				DeploymentID:     deployment,
				ID:               entry.ID,
				Name:             entry.Name,
				IDPrefix:         entry.Prefix,
				PrimaryProcessID: entry.PrimaryProcess,
				AdHocFragments:   entry.AdHocFragments,
				FileSchema:       entry.FileSchema,
			}
			for _, role := range entry.Roles {
				def.Roles = append(def.Roles, Role{Name: role.Name, Cardinality: role.Cardinality})
			}
			for _, stage := range entry.Stages {
				def.Stages = append(def.Stages, Stage{ID: stage.ID, Name: stage.Name})
			}
			for _, milestone := range entry.Milestones {
				def.Milestones = append(def.Milestones, Milestone{ID: milestone.ID, Name: milestone.Name})
			}
			if err := repo.Add(def); err != nil {
				return nil, fmt.Errorf("definitions %s: %w", path, err)
			}
		}
	}
	return repo, nil
}
