package advisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"task-manager/api/internal/cache"
	"task-manager/api/internal/logger"
)

// Memo stores finished suggestions. *cache.RedisCache satisfies it.
type Memo interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type Config struct {
	MaxChars int
	Timeout  time.Duration
	CacheTTL time.Duration
}

type Input struct {
	UserID      string
	Title       string
	Description string
}

type Advisor struct {
	completer Completer
	breaker   *cache.CircuitBreaker
	memo      Memo
	cfg       Config
	now       func() time.Time
}

type Option func(*Advisor)

func WithMemo(m Memo) Option {
	return func(a *Advisor) { a.memo = m }
}

func WithBreaker(cb *cache.CircuitBreaker) Option {
	return func(a *Advisor) { a.breaker = cb }
}

func WithClock(now func() time.Time) Option {
	return func(a *Advisor) { a.now = now }
}

// New builds an Advisor. A nil completer means no credential is configured and
// every call returns the not-configured fallback without touching the network.
func New(completer Completer, cfg Config, opts ...Option) *Advisor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 1200
	}

	a := &Advisor{
		completer: completer,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.breaker == nil {
		a.breaker = cache.NewCircuitBreaker(nil)
	}
	return a
}

func (a *Advisor) Enabled() bool {
	return a.completer != nil
}

// BreakerStats reports the state of the circuit guarding the model call.
func (a *Advisor) BreakerStats() map[string]interface{} {
	return a.breaker.GetStats()
}

// Suggest never fails: every error path resolves to a fallback Result.
func (a *Advisor) Suggest(ctx context.Context, in Input) Result {
	today := Today(a.now())

	if a.completer == nil {
		return a.fallback(today, ReasonNotConfigured, nil)
	}

	key := memoKey(in, today)
	if res, ok := a.lookup(ctx, key); ok {
		return res
	}

	var reply string
	err := a.breaker.Execute(func() error {
		callCtx := ctx
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}

		var err error
		reply, err = a.completer.Complete(callCtx, SystemPrompt(today), UserPrompt(in.Title, in.Description, a.cfg.MaxChars))
		return err
	})
	if err != nil {
		if errors.Is(err, cache.ErrCircuitBreakerOpen) {
			return a.fallback(today, ReasonCircuitOpen, nil)
		}
		return a.fallback(today, ReasonUpstreamError, err)
	}

	res := Sanitize(reply, today)
	if res.IsFallback() {
		return a.fallback(today, res.Fallback, nil)
	}

	a.store(ctx, key, res.Suggestion)
	return res
}

func (a *Advisor) fallback(today time.Time, reason FallbackReason, err error) Result {
	args := []any{"reason", string(reason)}
	if err != nil {
		args = append(args, "error", err)
	}
	logger.Warn("due date suggestion fell back", args...)

	return Fallback(today, reason)
}

func (a *Advisor) lookup(ctx context.Context, key string) (Result, bool) {
	if a.memo == nil || a.cfg.CacheTTL <= 0 {
		return Result{}, false
	}

	var s Suggestion
	if err := a.memo.Get(ctx, key, &s); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Debug("suggestion memo lookup failed", "error", err)
		}
		return Result{}, false
	}
	return Result{Suggestion: s, Cached: true}, true
}

func (a *Advisor) store(ctx context.Context, key string, s Suggestion) {
	if a.memo == nil || a.cfg.CacheTTL <= 0 {
		return
	}
	if err := a.memo.Set(ctx, key, s, a.cfg.CacheTTL); err != nil {
		logger.Debug("suggestion memo store failed", "error", err)
	}
}

// memoKey is scoped to the user and the day so relative phrases resolve afresh each day.
func memoKey(in Input, today time.Time) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		in.UserID, today.Format(dateLayout), in.Title, in.Description,
	}, "\x00")))
	return "suggest:" + hex.EncodeToString(sum[:])
}

func SystemPrompt(today time.Time) string {
	return fmt.Sprintf("You are a helpful assistant that proposes a due date for a task.\n"+
		"Return STRICT JSON with keys: due_date (YYYY-MM-DD), confidence (low|medium|high), reasoning (<=%d chars).\n"+
		"Rules:\n"+
		"- Today's date is %s.\n"+
		"- If user says 'tomorrow', 'next week', etc., resolve appropriately.\n"+
		"- If unclear, choose a reasonable date within 3-%d days.\n"+
		"- Do not include any extra keys or text.",
		MaxReasoningChars, today.Format(dateLayout), HorizonDays)
}

// UserPrompt caps the description at maxChars runes.
func UserPrompt(title, description string, maxChars int) string {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if maxChars > 0 && utf8.RuneCountInString(description) > maxChars {
		description = string([]rune(description)[:maxChars])
	}

	return strings.TrimSpace(fmt.Sprintf("Title: %s\nDescription: %s", title, description))
}
