package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Hook observes every statement sent through a DB or Tx.
//
// Implementations must be goroutine-safe. A panicking hook is recovered and
// logged; the statement still runs.
type Hook interface {
	BeforeQuery(ctx context.Context, query string, args []any)
	// AfterQuery receives the error already passed through the ErrorMapper.
	AfterQuery(ctx context.Context, query string, args []any, duration time.Duration, err error)
}

type hookChain []Hook

func newHookChain(hooks []Hook) hookChain {
	chain := make(hookChain, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			chain = append(chain, h)
		}
	}
	return chain
}

func (c hookChain) Before(ctx context.Context, query string, args []any) {
	for _, h := range c {
		guard("BeforeQuery", func() { h.BeforeQuery(ctx, query, args) })
	}
}

func (c hookChain) After(ctx context.Context, query string, args []any, d time.Duration, err error) {
	for _, h := range c {
		guard("AfterQuery", func() { h.AfterQuery(ctx, query, args, d, err) })
	}
}

func guard(phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("user-service/db: hook panic", "phase", phase, "panic", r)
		}
	}()
	fn()
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging hook
// ─────────────────────────────────────────────────────────────────────────────

// LogHookConfig configures the structured logging hook.
type LogHookConfig struct {
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
	// SlowQueryThreshold logs a warning when duration exceeds this value.
	// Zero disables slow-query logging.
	SlowQueryThreshold time.Duration
	// LogArgs adds the bound arguments to every entry. String arguments
	// (logins, names, address parts) are replaced by their length.
	LogArgs bool
}

// NewLogHook returns a Hook that logs one entry per statement, keyed by the
// SQL operation and table rather than the statement text.
func NewLogHook(cfg LogHookConfig) Hook {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return logHook(cfg)
}

type logHook LogHookConfig

func (logHook) BeforeQuery(context.Context, string, []any) {}

func (h logHook) AfterQuery(ctx context.Context, query string, args []any, d time.Duration, err error) {
	op, table := describeStatement(query)
	attrs := []any{
		slog.String("op", op),
		slog.String("table", table),
		slog.Duration("duration", d),
	}
	if h.LogArgs && len(args) > 0 {
		attrs = append(attrs, slog.Any("args", redactArgs(args)))
	}

	switch {
	case err != nil && !IsNotFound(err):
		h.Logger.ErrorContext(ctx, "user-service/db: statement failed", append(attrs, slog.Any("error", err))...)
	case h.SlowQueryThreshold > 0 && d > h.SlowQueryThreshold:
		h.Logger.WarnContext(ctx, "user-service/db: slow statement", attrs...)
	default:
		h.Logger.DebugContext(ctx, "user-service/db: statement", attrs...)
	}
}

// describeStatement returns the leading keyword and the table the statement
// targets, e.g. ("UPDATE", "users"). table is empty when it cannot be found.
func describeStatement(query string) (op, table string) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "", ""
	}
	op = strings.ToUpper(fields[0])

	var after string
	switch op {
	case "SELECT", "DELETE":
		after = "FROM"
	case "INSERT":
		after = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			return op, strings.Trim(fields[1], `"`)
		}
		return op, ""
	case "CREATE", "DROP", "ALTER":
		after = "TABLE"
	default:
		return op, ""
	}
	for i := 1; i < len(fields)-1; i++ {
		if !strings.EqualFold(fields[i], after) {
			continue
		}
		j := i + 1
		for j < len(fields)-1 && isExistenceClause(fields[j]) {
			j++
		}
		name, _, _ := strings.Cut(fields[j], "(")
		return op, strings.Trim(name, `"`)
	}
	return op, ""
}

func isExistenceClause(word string) bool {
	switch strings.ToUpper(word) {
	case "IF", "NOT", "EXISTS":
		return true
	}
	return false
}

func redactArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			out[i] = fmt.Sprintf("<%d chars>", len(v))
		case sql.NullString:
			if v.Valid {
				out[i] = fmt.Sprintf("<%d chars>", len(v.String))
			} else {
				out[i] = nil
			}
		default:
			out[i] = a
		}
	}
	return out
}
