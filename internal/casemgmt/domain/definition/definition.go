// Package definition models case definitions: the static metadata a case is
// started from. A definition declares the case id prefix, the roles a case
// may assign (with cardinality limits), stage and milestone metadata for
// dynamic-fragment scoping, and an optional JSON schema governing the case
// file.
package definition

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
)

// DefaultIDPrefix is used when a definition declares no case id prefix.
const DefaultIDPrefix = "CASE"

// Role declares a case role and its assignment limit.
type Role struct {
	Name string
	// Cardinality is the maximum number of entities assignable to the role
	// at once. Zero means unbounded.
	Cardinality int
}

// Stage declares a named sub-region of the primary process into which
// dynamic fragments can be scoped. Activity is a live property of the
// process instance, not of this metadata.
type Stage struct {
	ID   string
	Name string
}

// Milestone declares a named milestone of the case definition.
type Milestone struct {
	ID   string
	Name string
}

// CaseDefinition is the static description a case is started from.
type CaseDefinition struct {
	DeploymentID string
	ID           string
	Name         string
	IDPrefix     string
	// PrimaryProcessID is the process definition the execution substrate
	// starts as the case's primary instance.
	PrimaryProcessID string
	Roles            []Role
	Stages           []Stage
	Milestones       []Milestone
	// AdHocFragments names the ad-hoc elements that may be triggered
	// dynamically on this case.
	AdHocFragments []string
	// FileSchema is an optional JSON schema document (as source text)
	// governing the case file. Empty means ungoverned.
	FileSchema string

	compiledSchema *jsonschema.Schema
}

// Normalize trims and validates the definition, compiling the file schema
// when one is declared. It returns the canonical form.
func Normalize(def CaseDefinition) (CaseDefinition, error) {
	def.DeploymentID = strings.TrimSpace(def.DeploymentID)
	def.ID = strings.TrimSpace(def.ID)
	def.Name = strings.TrimSpace(def.Name)
	def.PrimaryProcessID = strings.TrimSpace(def.PrimaryProcessID)
	def.IDPrefix = strings.ToUpper(strings.TrimSpace(def.IDPrefix))
	if def.IDPrefix == "" {
		def.IDPrefix = DefaultIDPrefix
	}
	if def.ID == "" {
		return CaseDefinition{}, fmt.Errorf("case definition id is required")
	}
	if def.PrimaryProcessID == "" {
		return CaseDefinition{}, fmt.Errorf("case definition %s: primary process id is required", def.ID)
	}

	seenRoles := make(map[string]struct{}, len(def.Roles))
	for i, role := range def.Roles {
		name := strings.TrimSpace(role.Name)
		if name == "" {
			return CaseDefinition{}, fmt.Errorf("case definition %s: role name is required", def.ID)
		}
		if _, dup := seenRoles[name]; dup {
			return CaseDefinition{}, fmt.Errorf("case definition %s: duplicate role %q", def.ID, name)
		}
		if role.Cardinality < 0 {
			return CaseDefinition{}, fmt.Errorf("case definition %s: role %q cardinality must not be negative", def.ID, name)
		}
		seenRoles[name] = struct{}{}
		def.Roles[i].Name = name
	}

	if schema := strings.TrimSpace(def.FileSchema); schema != "" {
		compiled, err := compileFileSchema(def.ID, schema)
		if err != nil {
			return CaseDefinition{}, err
		}
		def.FileSchema = schema
		def.compiledSchema = compiled
	}
	return def, nil
}

func compileFileSchema(definitionID, source string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	url := fmt.Sprintf("casemgmt://%s/case-file.schema.json", definitionID)
	if err := compiler.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("case definition %s: add file schema: %w", definitionID, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("case definition %s: compile file schema: %w", definitionID, err)
	}
	return compiled, nil
}

// Role returns the declared role with the given name.
func (d CaseDefinition) Role(name string) (Role, bool) {
	name = strings.TrimSpace(name)
	for _, role := range d.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return Role{}, false
}

// Stage returns the declared stage with the given id.
func (d CaseDefinition) Stage(id string) (Stage, bool) {
	id = strings.TrimSpace(id)
	for _, stage := range d.Stages {
		if stage.ID == id {
			return stage, true
		}
	}
	return Stage{}, false
}

// StageIDs returns the declared stage ids in declaration order.
func (d CaseDefinition) StageIDs() []string {
	ids := make([]string, 0, len(d.Stages))
	for _, stage := range d.Stages {
		ids = append(ids, stage.ID)
	}
	return ids
}

// ValidateFile checks a case file snapshot against the definition's file
// schema. Ungoverned definitions accept every file.
func (d CaseDefinition) ValidateFile(file *casefile.File) error {
	if d.compiledSchema == nil {
		return nil
	}
	doc, err := file.Document()
	if err != nil {
		return fmt.Errorf("build case file document: %w", err)
	}
	if err := d.compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("case file schema: %w", err)
	}
	return nil
}

// Governed reports whether the definition declares a case file schema.
func (d CaseDefinition) Governed() bool {
	return d.compiledSchema != nil
}
