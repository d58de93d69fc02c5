package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"contest-service/internal/app"
	"contest-service/internal/config"
	"contest-service/internal/domain"
	mongostore "contest-service/internal/infra/mongo"
	"contest-service/internal/infra/postgres"
	redisstore "contest-service/internal/infra/redis"
	"contest-service/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type contestWriter interface {
	SaveContest(ctx context.Context, c domain.ContestDefinition) (domain.ContestDefinition, error)
}

// NewImportContestCmd upserts a contest definition from a YAML file.
func NewImportContestCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import-contest <file.yaml>",
		Short: "Create or replace a contest definition, bumping its version when the queue changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Server.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()
			return importContest(cmd.Context(), cfg, args[0], log)
		},
	}
}

func importContest(ctx context.Context, cfg config.Config, path string, log *logger.Logger) error {
	contest, err := readContestFile(path)
	if err != nil {
		return err
	}

	var writer contestWriter
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		db := postgres.OpenBun(cfg.Postgres.URL)
		defer db.Close()
		writer = postgres.NewContestWriter(db)
	case cfg.Mongo.URI != "":
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		writer = mongostore.NewContestStore(client.Database(cfg.Mongo.Database))
	default:
		return errors.New("no contest store configured: set postgres.url or mongo.uri")
	}

	saved, err := writer.SaveContest(ctx, contest)
	if err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		if err := redisstore.NewContestRepository(client, nil, 0, log).Invalidate(ctx, saved.ID); err != nil {
			log.Warn("invalidate cached contest", "contest_id", saved.ID, "error", err)
		}
	}
	log.Info("contest imported", "contest_id", saved.ID, "version", saved.Version, "segments", len(app.BuildSegmentQueue(saved, cfg.Contest.DefaultLanguage)))
	return nil
}

// readContestFile decodes and sanity-checks a definition.
func readContestFile(path string) (domain.ContestDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ContestDefinition{}, err
	}
	var c domain.ContestDefinition
	if err := yaml.Unmarshal(data, &c); err != nil {
		return domain.ContestDefinition{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if c.Status == "" {
		c.Status = domain.ContestDraft
	}
	if err := c.Validate(); err != nil {
		return domain.ContestDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
