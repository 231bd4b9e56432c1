package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Quiz.TotalQuestions != 5 || cfg.Quiz.TimeLimit != 30 || cfg.Quiz.RankingDisplayCount != 3 {
		t.Fatalf("unexpected quiz defaults: %+v", cfg.Quiz)
	}
	key := cfg.AnswerKey()
	if len(key.Questions) != 5 || key.Questions[4].CorrectAnswer != 3 {
		t.Fatalf("unexpected answer key: %+v", key)
	}
	if key.Questions[0].TimeLimitSeconds != 30 {
		t.Fatalf("expected question time limit to fall back to quiz limit, got %d", key.Questions[0].TimeLimitSeconds)
	}
}

func TestLoadOverridesSlices(t *testing.T) {
	path := writeConfig(t, `
quiz:
  id: rehearsal
  total_questions: 2
  choice_labels: ["A", "B"]
  questions:
    - number: 1
      correct_answer: 1
    - number: 2
      correct_answer: 0
      time_limit: 10
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Quiz.ChoiceLabels) != 2 || len(cfg.Quiz.Questions) != 2 {
		t.Fatalf("expected slices replaced, got labels=%v questions=%v", cfg.Quiz.ChoiceLabels, cfg.Quiz.Questions)
	}
	if got := cfg.AnswerKey().Questions[1].TimeLimitSeconds; got != 10 {
		t.Fatalf("expected per-question limit 10, got %d", got)
	}
}

func TestRedisBackendRequiresAddr(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: redis\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestValidateRejectsCorrectAnswerOutsideChoices(t *testing.T) {
	cfg := Default()
	cfg.Quiz.Questions[0].CorrectAnswer = 4
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %s", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %s", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
