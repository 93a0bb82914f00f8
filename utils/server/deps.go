package server

import (
	"context"
	"fmt"

	"github.com/kris-hansen/personaflow/utils/chat"
	"github.com/kris-hansen/personaflow/utils/config"
	"github.com/kris-hansen/personaflow/utils/models"
	"github.com/kris-hansen/personaflow/utils/persona"
	"github.com/kris-hansen/personaflow/utils/processor"
	"github.com/kris-hansen/personaflow/utils/retention"
	"github.com/kris-hansen/personaflow/utils/scraper"
	"github.com/kris-hansen/personaflow/utils/store"
)

// Deps are the services behind the HTTP API and the CLI
type Deps struct {
	Store    store.Store
	Personas *persona.Registry
	Executor *processor.Executor
	Chat     *chat.Service
	Scraper  *scraper.Scraper
	Sweeper  *retention.Sweeper // nil unless retention is enabled
}

// OpenDeps builds every service from the environment configuration
func OpenDeps(ctx context.Context, envConfig *config.EnvConfig) (*Deps, error) {
	serverConfig := envConfig.GetServerConfig()

	st, err := store.Open(ctx, envConfig.Storage, serverConfig.DataDir)
	if err != nil {
		return nil, err
	}
	config.DebugLog("Opened %s store", envConfig.Storage.Driver)

	registry, err := persona.NewRegistry(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	if file := envConfig.Pipeline.PersonaFile; file != "" {
		loaded, err := persona.Load(file)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("error loading persona file: %w", err)
		}
		registry.AddBuiltins(loaded...)
		config.VerboseLog("Loaded %d personas from %s", len(loaded), file)
	}

	router := models.NewRouter(models.DefaultRegistry(), envConfig)
	completer := models.Instrumented(models.WithTimeout(router, envConfig.Pipeline.StepTimeout))

	exec := processor.NewExecutor(registry, st, completer, processor.Options{
		ParallelLimit: envConfig.Pipeline.ParallelLimit,
		DefaultModel:  envConfig.DefaultModel,
	})

	d := &Deps{
		Store:    st,
		Personas: registry,
		Executor: exec,
		Chat:     chat.NewService(st, exec, registry, completer, chat.Options{Model: envConfig.DefaultModel}),
		Scraper:  scraper.NewScraper(),
	}

	if envConfig.Retention.Enabled {
		d.Sweeper, err = retention.NewSweeper(st, envConfig.Retention.MaxAge, envConfig.Retention.Schedule)
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	return d, nil
}

// Close stops the sweeper and releases the store
func (d *Deps) Close() error {
	if d.Sweeper != nil {
		d.Sweeper.Stop()
	}
	return d.Store.Close()
}
