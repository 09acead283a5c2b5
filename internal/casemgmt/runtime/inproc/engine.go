// Package inproc provides an in-process execution substrate: a minimal
// process engine backing the CLI, default daemon wiring, and tests.
package inproc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/dynamic"
	"github.com/mdproctor/casemgmt/internal/casemgmt/runtime"
	"github.com/mdproctor/casemgmt/internal/platform/id"
)

type process struct {
	stages []string
}

type instance struct {
	processID  string
	stages     map[string]bool
	injections []dynamic.NodeSpec
}

// Engine runs registered processes in memory. Instances hold their declared
// stages active from start until completed explicitly; injected work is
// recorded rather than executed.
type Engine struct {
	mu        sync.Mutex
	processes map[string]process
	instances map[string]*instance
	newID     func() string
}

// NewEngine creates an empty in-process engine.
func NewEngine() *Engine {
	return &Engine{
		processes: map[string]process{},
		instances: map[string]*instance{},
		newID:     id.NewID,
	}
}

// RegisterProcess declares a runnable process and its stage ids.
func (e *Engine) RegisterProcess(processID string, stages ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.processes[strings.TrimSpace(processID)] = process{stages: append([]string(nil), stages...)}
}

// StartProcessInstance starts an instance of a registered process.
func (e *Engine) StartProcessInstance(ctx context.Context, processID string, _ map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(processID)
}

func (e *Engine) startLocked(processID string) (string, error) {
	processID = strings.TrimSpace(processID)
	proc, ok := e.processes[processID]
	if !ok {
		return "", fmt.Errorf("process %q is not registered", processID)
	}
	inst := &instance{processID: processID, stages: map[string]bool{}}
	for _, stage := range proc.stages {
		inst.stages[stage] = true
	}
	instanceID := e.newID()
	e.instances[instanceID] = inst
	return instanceID, nil
}

// Adopt registers an already running instance with the given active stages,
// rehydrating the substrate from durable case records after a restart. An
// instance that is already running keeps its state.
func (e *Engine) Adopt(instanceID string, stages ...string) {
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[instanceID]; ok {
		return
	}
	inst := &instance{stages: map[string]bool{}}
	for _, stage := range stages {
		inst.stages[stage] = true
	}
	e.instances[instanceID] = inst
}

// StopProcessInstance stops and forgets the instance.
func (e *Engine) StopProcessInstance(ctx context.Context, instanceID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.instances[instanceID]; !ok {
		return fmt.Errorf("instance %q is not running", instanceID)
	}
	delete(e.instances, instanceID)
	return nil
}

// InjectNode records dynamic work on a live instance. Subprocess injections
// start a new instance of the referenced process and return its id.
func (e *Engine) InjectNode(ctx context.Context, instanceID, stageID string, spec dynamic.NodeSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return "", fmt.Errorf("instance %q is not running", instanceID)
	}
	if stageID != "" && !inst.stages[stageID] {
		return "", fmt.Errorf("stage %q is not active in instance %q", stageID, instanceID)
	}
	inst.injections = append(inst.injections, spec)
	if spec.Kind == dynamic.KindSubprocess {
		return e.startLocked(spec.ProcessID)
	}
	return "", nil
}

// InstanceExists reports whether the instance is running.
func (e *Engine) InstanceExists(ctx context.Context, instanceID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.instances[instanceID]
	return ok, nil
}

// ActiveStages returns the stage ids currently active in the instance.
func (e *Engine) ActiveStages(ctx context.Context, instanceID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %q is not running", instanceID)
	}
	var active []string
	for stage, isActive := range inst.stages {
		if isActive {
			active = append(active, stage)
		}
	}
	return active, nil
}

// CompleteStage marks the stage inactive, as a running process would when
// its stage finishes.
func (e *Engine) CompleteStage(instanceID, stageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return fmt.Errorf("instance %q is not running", instanceID)
	}
	if !inst.stages[stageID] {
		return fmt.Errorf("stage %q is not active in instance %q", stageID, instanceID)
	}
	inst.stages[stageID] = false
	return nil
}

// Injections returns the dynamic work recorded on the instance in injection
// order.
func (e *Engine) Injections(instanceID string) []dynamic.NodeSpec {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[instanceID]
	if !ok {
		return nil
	}
	return append([]dynamic.NodeSpec(nil), inst.injections...)
}

var _ runtime.ProcessEngine = (*Engine)(nil)
