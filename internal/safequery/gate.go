// Package safequery validates caller-supplied SQL before it reaches the
// store. The gate guarantees the statement cannot mutate the database and
// that its result size is bounded; everything that passes is executed as
// literal text and normalized into the shared report envelope.
package safequery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/MMontoya03/mcp-database/internal/metrics"
	"github.com/MMontoya03/mcp-database/internal/report"
	"github.com/MMontoya03/mcp-database/internal/store"
)

const DefaultLimit = 100

// limitToken matches LIMIT as a standalone word in the case-folded statement.
// An identifier like my_limit does not count.
var limitToken = regexp.MustCompile(`(?i)\blimit\b`)

type Config struct {
	Logger   *slog.Logger
	Executor store.Executor

	// Policy defaults to NewKeywordPolicy.
	Policy StatementPolicy

	// DefaultLimit is appended to statements that carry no LIMIT of their
	// own. Defaults to 100.
	DefaultLimit int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if cfg.Policy == nil {
		cfg.Policy = NewKeywordPolicy()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	return nil
}

// Gate runs free-form statements through the policy and bounding checks.
type Gate struct {
	log          *slog.Logger
	exec         store.Executor
	policy       StatementPolicy
	defaultLimit int
}

func New(cfg Config) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate gate config: %w", err)
	}
	return &Gate{
		log:          cfg.Logger,
		exec:         cfg.Executor,
		policy:       cfg.Policy,
		defaultLimit: cfg.DefaultLimit,
	}, nil
}

// Outcome is the caller-facing result of one gated statement. Exactly one of
// Envelope or Notice is populated; Rejection accompanies the notice when the
// policy refused the statement.
type Outcome struct {
	Envelope  *report.Envelope `json:"envelope,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Rejection *Rejection       `json:"rejection,omitempty"`
}

// Run validates, bounds and executes one statement. Policy refusals and empty
// results are successful outcomes; only store failures return an error.
func (g *Gate) Run(ctx context.Context, stmt string, limit int) (*Outcome, error) {
	if limit <= 0 {
		limit = g.defaultLimit
	}

	if rej := g.policy.Check(stmt); rej != nil {
		g.log.Debug("safequery: statement rejected", "kind", rej.Kind)
		metrics.QueriesRejectedTotal.WithLabelValues(string(rej.Kind)).Inc()
		return &Outcome{Notice: rej.Message, Rejection: rej}, nil
	}

	bounded := EnsureLimit(stmt, limit)

	// Free-form statements carry no bound parameters; the text executes
	// verbatim.
	res, err := g.exec.Execute(ctx, bounded)
	if err != nil {
		return nil, fmt.Errorf("safequery: %w", err)
	}

	if len(res.Rows) == 0 {
		return &Outcome{Notice: "query executed: no rows returned"}, nil
	}

	env := report.Build(
		"SQL query result",
		"Statement executed through the safe-query gate.",
		res.Columns,
		res.Rows,
	)
	return &Outcome{Envelope: env}, nil
}

// EnsureLimit appends " LIMIT n" unless the statement already contains a
// LIMIT token. An existing limit is trusted as-is, even when larger than the
// configured default.
func EnsureLimit(stmt string, n int) string {
	if limitToken.MatchString(stmt) {
		return stmt
	}
	return stmt + " LIMIT " + strconv.Itoa(n)
}
