package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/aaronmaturen/devtrail/internal/agent"
	"github.com/aaronmaturen/devtrail/internal/common"
	githubconn "github.com/aaronmaturen/devtrail/internal/connectors/github"
	jiraconn "github.com/aaronmaturen/devtrail/internal/connectors/jira"
	"github.com/aaronmaturen/devtrail/internal/interfaces"
	"github.com/aaronmaturen/devtrail/internal/jobs"
	"github.com/aaronmaturen/devtrail/internal/models"
	"github.com/aaronmaturen/devtrail/internal/services/criteria"
	"github.com/aaronmaturen/devtrail/internal/services/llm"
	"github.com/aaronmaturen/devtrail/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Planner interfaces.Planner
	Matcher *criteria.Matcher

	// Connectors are nil when unconfigured; the sync handlers fail their
	// jobs with a configuration error instead of the process failing to
	// start.
	GitHubConnector interfaces.CodeHostConnector
	JiraConnector   interfaces.IssueTrackerConnector

	Registry   *jobs.Registry
	Worker     *jobs.Worker
	Sweeper    *jobs.Sweeper
	JobService *jobs.Service
}

// New initializes the application: storage, rubric, planner, connectors,
// handler registry, worker and retention sweeper
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx := context.Background()

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	rubric, err := criteria.LoadRubric(config.Criteria.RubricPath)
	if err != nil {
		storageManager.Close()
		return nil, err
	}
	if err := criteria.SeedCriteria(ctx, storageManager.CriteriaStorage(), rubric); err != nil {
		storageManager.Close()
		return nil, err
	}
	logger.Info().
		Int("criteria", len(rubric)).
		Str("rubric", config.Criteria.RubricPath).
		Msg("Rubric loaded")

	planner, err := llm.NewPlanner(ctx, config, logger)
	if err != nil {
		storageManager.Close()
		return nil, err
	}

	matcher := criteria.NewMatcher(planner, logger, config.Criteria.MinConfidence, config.Criteria.MaxMatches)

	app := &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		Planner:        planner,
		Matcher:        matcher,
	}

	if config.GitHub.Token != "" {
		connector, err := githubconn.NewConnector(&config.GitHub, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.GitHubConnector = connector
	} else {
		logger.Warn().Msg("GitHub token not configured, sync-github jobs will fail")
	}

	if config.Jira.BaseURL != "" {
		connector, err := jiraconn.NewConnector(&config.Jira, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.JiraConnector = connector
	} else {
		logger.Warn().Msg("Jira base URL not configured, sync-jira jobs will fail")
	}

	app.Registry = jobs.NewRegistry(logger)
	app.registerHandlers()

	app.Worker = jobs.NewWorker(storageManager, app.Registry, logger, config.PollInterval())
	app.Sweeper = jobs.NewSweeper(storageManager.JobStorage(), logger, config.RetentionMaxAge(), config.Retention.Schedule)
	app.JobService = jobs.NewService(storageManager, app.Registry, app.Worker, logger, config.Worker.ProcessMode)

	return app, nil
}

// registerHandlers binds every dispatchable job type at startup
func (a *App) registerHandlers() {
	syncDeps := jobs.SyncDeps{
		Storage:  a.StorageManager,
		CodeHost: a.GitHubConnector,
		Tracker:  a.JiraConnector,
		Planner:  a.Planner,
		Matcher:  a.Matcher,
		Budget: agent.Budget{
			BaseSteps:    a.Config.Agent.BaseSteps,
			StepsPerItem: a.Config.Agent.StepsPerItem,
			MaxSteps:     a.Config.Agent.MaxSteps,
		},
		Logger: a.Logger,
	}

	a.Registry.Register(models.JobTypeSyncGitHub, jobs.NewSyncGitHubHandler(syncDeps))
	a.Registry.Register(models.JobTypeSyncJira, jobs.NewSyncJiraHandler(syncDeps))
	a.Registry.Register(models.JobTypeAnalyzeReview, jobs.NewAnalyzeReviewHandler(a.StorageManager, a.Matcher, a.Logger))
	a.Registry.Register(models.JobTypeGenerateInsight, jobs.NewGenerateInsightHandler(a.StorageManager, a.Planner, a.Logger))
}

// Start launches the worker and the retention sweeper
func (a *App) Start() error {
	if err := a.Sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start retention sweeper: %w", err)
	}
	a.Worker.Start()
	return nil
}

// Close shuts components down in reverse dependency order. The worker stops
// first so an in-flight job finishes before storage goes away.
func (a *App) Close() {
	if a.Worker != nil {
		a.Worker.Stop()
	}
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Planner != nil {
		if err := a.Planner.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Planner close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
