package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"wedding-quiz-service/internal/domain"
)

// ErrInvalidConfig marks configuration problems that must stop startup.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type QuestionConfig struct {
	Number        int `yaml:"number"`
	CorrectAnswer int `yaml:"correct_answer"`
	TimeLimit     int `yaml:"time_limit"`
}

type Config struct {
	Server struct {
		Port     string `yaml:"port"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Operator struct {
		Token string `yaml:"token"`
	} `yaml:"operator"`
	Quiz struct {
		ID                  string           `yaml:"id"`
		TotalQuestions      int              `yaml:"total_questions"`
		TimeLimit           int              `yaml:"time_limit"`
		RankingDisplayCount int              `yaml:"ranking_display_count"`
		ChoiceLabels        []string         `yaml:"choice_labels"`
		EnforceTimeLimit    bool             `yaml:"enforce_time_limit"`
		MaxNicknameLength   int              `yaml:"max_nickname_length"`
		CacheTTL            string           `yaml:"cache_ttl"`
		Questions           []QuestionConfig `yaml:"questions"`
	} `yaml:"quiz"`
}

// Default returns the settings used for the reception: five questions,
// thirty seconds each, top three on the podium.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.BasePath = "/api"
	cfg.Store.Backend = BackendMemory
	cfg.Redis.TTL = "12h"
	cfg.Quiz.ID = "wedding"
	cfg.Quiz.TotalQuestions = 5
	cfg.Quiz.TimeLimit = 30
	cfg.Quiz.RankingDisplayCount = 3
	cfg.Quiz.ChoiceLabels = []string{"A", "B", "C", "D"}
	cfg.Quiz.MaxNicknameLength = 20
	cfg.Quiz.CacheTTL = "10m"
	for i, correct := range []int{0, 1, 2, 0, 3} {
		cfg.Quiz.Questions = append(cfg.Quiz.Questions, QuestionConfig{Number: i + 1, CorrectAnswer: correct})
	}
	return cfg
}

// Load reads YAML config from path on top of Default. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		// Sequences replace the default slices rather than merging into them.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings that would only fail later, on first use.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: store backend %q requires redis.addr", ErrInvalidConfig, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Quiz.ID == "" {
		return fmt.Errorf("%w: quiz.id is required", ErrInvalidConfig)
	}
	if c.Quiz.TotalQuestions < 1 {
		return fmt.Errorf("%w: quiz.total_questions must be positive", ErrInvalidConfig)
	}
	if len(c.Quiz.ChoiceLabels) < 2 {
		return fmt.Errorf("%w: quiz.choice_labels needs at least two labels", ErrInvalidConfig)
	}
	if c.Quiz.TimeLimit < 0 {
		return fmt.Errorf("%w: quiz.time_limit must not be negative", ErrInvalidConfig)
	}
	if c.Postgres.URL == "" && len(c.Quiz.Questions) != c.Quiz.TotalQuestions {
		return fmt.Errorf("%w: answer key has %d questions, want %d", ErrInvalidConfig, len(c.Quiz.Questions), c.Quiz.TotalQuestions)
	}
	seen := make(map[int]bool, len(c.Quiz.Questions))
	for _, q := range c.Quiz.Questions {
		if q.Number < 1 || q.Number > c.Quiz.TotalQuestions {
			return fmt.Errorf("%w: question number %d out of range", ErrInvalidConfig, q.Number)
		}
		if seen[q.Number] {
			return fmt.Errorf("%w: question %d listed twice", ErrInvalidConfig, q.Number)
		}
		seen[q.Number] = true
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(c.Quiz.ChoiceLabels) {
			return fmt.Errorf("%w: question %d has correct answer %d outside choices", ErrInvalidConfig, q.Number, q.CorrectAnswer)
		}
	}
	return nil
}

// AnswerKey converts the configured questions to the domain answer key.
func (c Config) AnswerKey() domain.Quiz {
	quiz := domain.Quiz{ID: c.Quiz.ID}
	for _, q := range c.Quiz.Questions {
		limit := q.TimeLimit
		if limit == 0 {
			limit = c.Quiz.TimeLimit
		}
		quiz.Questions = append(quiz.Questions, domain.Question{
			Number:           q.Number,
			CorrectAnswer:    q.CorrectAnswer,
			TimeLimitSeconds: limit,
		})
	}
	return quiz
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
