package cli

import (
	"log"

	"github.com/spf13/cobra"

	"wedding-quiz-service/internal/config"
	"wedding-quiz-service/internal/infra/postgres"
	redisstore "wedding-quiz-service/internal/infra/redis"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the configured answer key in Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}

			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			quiz := cfg.AnswerKey()
			if err := postgres.SeedAnswerKey(ctx, db, quiz); err != nil {
				return err
			}
			log.Printf("answer key %s seeded with %d questions", quiz.ID, len(quiz.Questions))

			// Running servers would otherwise keep the old key until the cache expires.
			if cfg.Store.Backend == config.BackendRedis {
				b, err := openBackends(ctx, cfg)
				if err != nil {
					return err
				}
				defer b.close()
				if repo, ok := b.quizzes.(*redisstore.QuizRepository); ok {
					if err := repo.Invalidate(ctx, quiz.ID); err != nil {
						return err
					}
					opts.logf("answer key cache for %s invalidated", quiz.ID)
				}
			}
			return nil
		},
	}
}
