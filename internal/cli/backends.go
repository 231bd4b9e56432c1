package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/config"
	"wedding-quiz-service/internal/infra/memory"
	"wedding-quiz-service/internal/infra/postgres"
	redisstore "wedding-quiz-service/internal/infra/redis"
)

// backends is the store set selected by store.backend. Memory and Redis
// implementations are never mixed within one process.
type backends struct {
	sessions app.SessionStore
	ledger   app.AnswerLedger
	guests   app.GuestRegistry
	quizzes  app.QuizRepository
	archive  *postgres.ResultArchive

	redis *redis.Client
	pool  *pgxpool.Pool
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(cfg.AnswerKey())
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		loader = postgres.NewQuizLoader(pool)
		b.archive = postgres.NewResultArchive(pool)
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			b.close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		b.redis = client
		ttl := config.TTLDuration(cfg.Redis.TTL, 12*time.Hour)
		b.sessions = redisstore.NewSessionStore(client, ttl)
		b.ledger = redisstore.NewAnswerLedger(client, ttl)
		b.guests = redisstore.NewGuestRegistry(client, ttl)
		b.quizzes = redisstore.NewQuizRepository(client, loader, cacheTTL)
	default:
		b.sessions = memory.NewSessionStore()
		b.ledger = memory.NewAnswerLedger()
		b.guests = memory.NewGuestRegistry()
		b.quizzes = memory.NewQuizRepository(loader, cacheTTL)
	}
	return b, nil
}

func (b *backends) service(cfg config.Config) *app.QuizService {
	opts := []app.Option{}
	if b.archive != nil {
		opts = append(opts, app.WithResultArchive(b.archive))
	}
	return app.NewQuizService(b.sessions, b.ledger, b.guests, b.quizzes, settingsFrom(cfg), opts...)
}

func (b *backends) close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func settingsFrom(cfg config.Config) app.Settings {
	return app.Settings{
		QuizID:              cfg.Quiz.ID,
		TotalQuestions:      cfg.Quiz.TotalQuestions,
		TimeLimit:           time.Duration(cfg.Quiz.TimeLimit) * time.Second,
		RankingDisplayCount: cfg.Quiz.RankingDisplayCount,
		ChoiceCount:         len(cfg.Quiz.ChoiceLabels),
		EnforceTimeLimit:    cfg.Quiz.EnforceTimeLimit,
		MaxNicknameLength:   cfg.Quiz.MaxNicknameLength,
	}
}
