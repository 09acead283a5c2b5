// Package runtime defines the contracts the case engine holds against its
// collaborators: the process execution substrate and the organizational
// directory. Both are black boxes; the engine only issues blocking calls and
// trusts acknowledgments.
package runtime

import (
	"context"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/dynamic"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// ProcessEngine is the execution substrate running process instances on
// behalf of cases.
type ProcessEngine interface {
	// StartProcessInstance starts the process and returns its instance id.
	StartProcessInstance(ctx context.Context, processID string, parameters map[string]any) (string, error)
	// StopProcessInstance stops the instance and returns once the substrate
	// acknowledges the stop.
	StopProcessInstance(ctx context.Context, instanceID string) error
	// InjectNode injects dynamic work into a live instance. A stage id
	// scopes the injection to that stage; empty means the instance itself.
	// Subprocess injections return the spawned instance id, every other
	// kind returns "".
	InjectNode(ctx context.Context, instanceID, stageID string, spec dynamic.NodeSpec) (string, error)
	// InstanceExists reports whether the instance is alive on the substrate.
	InstanceExists(ctx context.Context, instanceID string) (bool, error)
	// ActiveStages returns the ids of stages currently active in the
	// instance.
	ActiveStages(ctx context.Context, instanceID string) ([]string, error)
}

// Directory resolves organizational entity references for role assignment.
type Directory interface {
	// ResolveEntity validates the reference and returns its canonical form.
	ResolveEntity(ctx context.Context, entity role.Entity) (role.Entity, error)
}

// AllowAllDirectory accepts any syntactically valid entity reference. It is
// the default wiring when no real directory is attached.
type AllowAllDirectory struct{}

// ResolveEntity returns the normalized entity, rejecting only malformed
// references.
func (AllowAllDirectory) ResolveEntity(_ context.Context, entity role.Entity) (role.Entity, error) {
	entity = entity.Normalize()
	if !entity.Valid() {
		return role.Entity{}, apperrors.WithMetadata(
			apperrors.CodeEntityInvalid,
			"entity reference requires an id and a user or group type",
			map[string]string{"entity_id": entity.ID, "entity_type": string(entity.Type)},
		)
	}
	return entity, nil
}

var _ Directory = AllowAllDirectory{}
