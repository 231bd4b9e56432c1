package redis

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"wedding-quiz-service/internal/domain"
)

// QuizLoader fetches an answer key from its backing store (config, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches answer keys in Redis and falls back to a loader on a miss.
//
//	HSET quiz:{quizID}:answers {number} {correct choice}
//	HSET quiz:{quizID}:limits  {number} {time limit seconds}
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Another caller may have filled the cache meanwhile.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := r.ttlWithJitter()
		answersKey, limitsKey := r.answersKey(quizID), r.limitsKey(quizID)
		pipe := r.client.TxPipeline()
		for _, q := range quiz.Questions {
			field := strconv.Itoa(q.Number)
			pipe.HSet(ctx, answersKey, field, q.CorrectAnswer)
			pipe.HSet(ctx, limitsKey, field, q.TimeLimitSeconds)
		}
		if ttl > 0 {
			pipe.Expire(ctx, answersKey, ttl)
			pipe.Expire(ctx, limitsKey, ttl)
		}
		// A failed cache fill only costs another load.
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Invalidate drops the cached answer key, for example after reseeding Postgres.
func (r *QuizRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.answersKey(quizID), r.limitsKey(quizID)).Err()
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	answers, err := r.client.HGetAll(ctx, r.answersKey(quizID)).Result()
	if err != nil || len(answers) == 0 {
		return domain.Quiz{}, false
	}
	limits, _ := r.client.HGetAll(ctx, r.limitsKey(quizID)).Result()
	quiz, ok := buildQuizFromCache(quizID, answers, limits)
	return quiz, ok
}

func (r *QuizRepository) answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

func (r *QuizRepository) limitsKey(quizID string) string {
	return "quiz:" + quizID + ":limits"
}

// buildQuizFromCache rejects entries it cannot parse so the loader is consulted instead.
func buildQuizFromCache(quizID string, answers, limits map[string]string) (domain.Quiz, bool) {
	questions := make([]domain.Question, 0, len(answers))
	for field, correct := range answers {
		number, err := strconv.Atoi(field)
		if err != nil {
			return domain.Quiz{}, false
		}
		choice, err := strconv.Atoi(correct)
		if err != nil {
			return domain.Quiz{}, false
		}
		limit, _ := strconv.Atoi(limits[field])
		questions = append(questions, domain.Question{
			Number:           number,
			CorrectAnswer:    choice,
			TimeLimitSeconds: limit,
		})
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].Number < questions[j].Number })
	return domain.Quiz{ID: quizID, Questions: questions}, true
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
