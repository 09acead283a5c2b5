// Package dynamic models work injected into a running case outside its
// modeled flow: human tasks, generic work nodes, subprocesses, and ad-hoc
// fragments declared by the case definition.
package dynamic

import (
	"strings"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// Kind discriminates what gets injected into the target instance.
type Kind string

const (
	KindHumanTask  Kind = "human_task"
	KindWorkItem   Kind = "work_item"
	KindSubprocess Kind = "subprocess"
	KindFragment   Kind = "fragment"
)

// TaskSpecification describes a dynamic task before injection. String
// attributes may carry #{name} placeholder expressions which are resolved
// against the case file snapshot at injection time.
type TaskSpecification struct {
	kind        Kind
	nodeType    string
	name        string
	actors      string
	groups      string
	description string
	parameters  map[string]any
}

// NewHumanTaskSpec builds a human task specification. Actors and groups are
// comma-separated assignment candidates; either may be empty but the task
// name may not.
func NewHumanTaskSpec(name, actors, groups, description string, parameters map[string]any) (TaskSpecification, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TaskSpecification{}, apperrors.New(apperrors.CodeTaskSpecInvalid, "human task requires a name")
	}
	return TaskSpecification{
		kind:        KindHumanTask,
		name:        name,
		actors:      actors,
		groups:      groups,
		description: description,
		parameters:  cloneParameters(parameters),
	}, nil
}

// NewNodeTaskSpec builds a generic work-node specification. The node type
// names the substrate handler; the node name labels this occurrence and
// defaults to the type when blank.
func NewNodeTaskSpec(nodeType, nodeName string, parameters map[string]any) (TaskSpecification, error) {
	nodeType = strings.TrimSpace(nodeType)
	if nodeType == "" {
		return TaskSpecification{}, apperrors.New(apperrors.CodeTaskSpecInvalid, "work node requires a node type")
	}
	nodeName = strings.TrimSpace(nodeName)
	if nodeName == "" {
		nodeName = nodeType
	}
	return TaskSpecification{
		kind:       KindWorkItem,
		nodeType:   nodeType,
		name:       nodeName,
		parameters: cloneParameters(parameters),
	}, nil
}

func (s TaskSpecification) Kind() Kind                 { return s.kind }
func (s TaskSpecification) NodeType() string           { return s.nodeType }
func (s TaskSpecification) Name() string               { return s.name }
func (s TaskSpecification) Actors() string             { return s.actors }
func (s TaskSpecification) Groups() string             { return s.groups }
func (s TaskSpecification) Description() string        { return s.description }
func (s TaskSpecification) Parameters() map[string]any { return cloneParameters(s.parameters) }

// ResolveAgainst returns a copy of the specification with every #{name}
// placeholder in its string attributes substituted from the file snapshot.
// Resolution happens exactly once; the returned specification carries no
// remaining expressions for known names.
func (s TaskSpecification) ResolveAgainst(file *casefile.File) TaskSpecification {
	resolved := s
	resolved.name = casefile.ResolvePlaceholders(s.name, file)
	resolved.actors = casefile.ResolvePlaceholders(s.actors, file)
	resolved.groups = casefile.ResolvePlaceholders(s.groups, file)
	resolved.description = casefile.ResolvePlaceholders(s.description, file)
	resolved.parameters = make(map[string]any, len(s.parameters))
	for key, value := range s.parameters {
		if text, ok := value.(string); ok {
			resolved.parameters[key] = casefile.ResolvePlaceholders(text, file)
			continue
		}
		resolved.parameters[key] = value
	}
	return resolved
}

// NodeSpec is the substrate-facing form of an injection: what the execution
// engine receives through InjectNode.
type NodeSpec struct {
	Kind         Kind
	NodeType     string
	Name         string
	ProcessID    string
	FragmentName string
	Actors       string
	Groups       string
	Description  string
	Parameters   map[string]any
}

// NodeSpec converts the task specification into its substrate form.
func (s TaskSpecification) NodeSpec() NodeSpec {
	return NodeSpec{
		Kind:        s.kind,
		NodeType:    s.nodeType,
		Name:        s.name,
		Actors:      s.actors,
		Groups:      s.groups,
		Description: s.description,
		Parameters:  cloneParameters(s.parameters),
	}
}

// SubprocessNode builds the substrate form of a dynamic subprocess launch.
func SubprocessNode(processID string, parameters map[string]any) NodeSpec {
	return NodeSpec{
		Kind:       KindSubprocess,
		ProcessID:  processID,
		Parameters: cloneParameters(parameters),
	}
}

// FragmentNode builds the substrate form of an ad-hoc fragment trigger.
func FragmentNode(fragmentName string, data map[string]any) NodeSpec {
	return NodeSpec{
		Kind:         KindFragment,
		FragmentName: fragmentName,
		Parameters:   cloneParameters(data),
	}
}

func cloneParameters(parameters map[string]any) map[string]any {
	if parameters == nil {
		return nil
	}
	out := make(map[string]any, len(parameters))
	for key, value := range parameters {
		out[key] = value
	}
	return out
}
