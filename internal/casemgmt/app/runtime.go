package app

import (
	"context"
	"fmt"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/definition"
	"github.com/mdproctor/casemgmt/internal/casemgmt/runtime/inproc"
	"github.com/mdproctor/casemgmt/internal/casemgmt/service"
	casesqlite "github.com/mdproctor/casemgmt/internal/casemgmt/storage/sqlite"
)

const rehydratePageSize = 200

// OpenRuntime opens the durable case store, loads deployed definitions, and
// assembles the case service over a rehydrated in-process execution
// substrate. The caller owns the returned store and must close it.
func OpenRuntime(ctx context.Context, dbPath, definitionsDir string) (*service.Service, *casesqlite.Store, error) {
	store, err := openCaseStore(dbPath)
	if err != nil {
		return nil, nil, err
	}
	definitions, err := definition.LoadDir(definitionsDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("load case definitions from %s: %w", definitionsDir, err)
	}
	engine := inproc.NewEngine()
	for _, def := range definitions.All() {
		engine.RegisterProcess(def.PrimaryProcessID, def.StageIDs()...)
	}
	if err := rehydrate(ctx, store, definitions, engine); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return service.NewService(store, definitions, engine, nil), store, nil
}

// rehydrate adopts every active case's process instances into the substrate
// so that durable records survive process restarts.
func rehydrate(ctx context.Context, store *casesqlite.Store, definitions *definition.StaticRepository, engine *inproc.Engine) error {
	pageToken := ""
	for {
		page, err := store.ListCases(ctx, rehydratePageSize, pageToken)
		if err != nil {
			return fmt.Errorf("rehydrate cases: %w", err)
		}
		for _, rec := range page.Cases {
			if rec.State != caseinstance.StateActive {
				continue
			}
			var stages []string
			if def, err := definitions.Lookup(ctx, rec.DeploymentID, rec.DefinitionID); err == nil {
				stages = def.StageIDs()
			}
			engine.Adopt(rec.PrimaryInstanceID, stages...)
			for _, instanceID := range rec.SecondaryInstanceIDs {
				engine.Adopt(instanceID)
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}
