package catalog

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MMontoya03/mcp-database/internal/metrics"
	"github.com/MMontoya03/mcp-database/internal/report"
	"github.com/MMontoya03/mcp-database/internal/safequery"
)

type TopNInput struct {
	TopN int `json:"top_n,omitempty" jsonschema:"Number of rows to return (default 10)."`
}

type ListColumnsInput struct {
	TableName string `json:"table_name" jsonschema:"Name of the table to describe."`
}

type FilmsByActorInput struct {
	ActorName string `json:"actor_name" jsonschema:"Full or partial actor name, matched case-insensitively."`
}

type SafeQueryInput struct {
	SQL   string `json:"sql" jsonschema:"A single SELECT statement. Mutating statements are refused. A LIMIT is appended when the statement has none."`
	Limit int    `json:"limit,omitempty" jsonschema:"Row bound appended when the statement has no LIMIT of its own (default 100)."`
}

type EnvelopeOutput struct {
	Envelope report.Envelope `json:"envelope"`
}

// Register wires every catalog entry onto the MCP server. Tool handlers are
// instrumented with per-tool call counters and duration histograms.
func (s *Service) Register(server *mcp.Server) error {
	type entry struct {
		name        string
		description string
		register    func(name, description string) error
	}

	entries := []entry{
		{
			"list_tables",
			"List the tables available in the Pagila database. Use this first to discover what can be queried.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, _ struct{}) (EnvelopeOutput, error) {
						return s.envelope(s.ListTables(ctx))
					})
			},
		},
		{
			"list_columns",
			"List the columns and data types of one table. Use list_tables to find table names.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in ListColumnsInput) (EnvelopeOutput, error) {
						return s.envelope(s.ListColumns(ctx, in.TableName))
					})
			},
		},
		{
			"top_customers_by_rentals",
			"Rank customers by number of rentals.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopCustomersByRentals(ctx, in.TopN))
					})
			},
		},
		{
			"top_customers_by_revenue",
			"Rank customers by total payment revenue.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopCustomersByRevenue(ctx, in.TopN))
					})
			},
		},
		{
			"top_categories_by_revenue",
			"Rank film categories by total revenue.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopCategoriesByRevenue(ctx, in.TopN))
					})
			},
		},
		{
			"top_actors_by_film_count",
			"Rank actors by the number of films they appear in.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopActorsByFilmCount(ctx, in.TopN))
					})
			},
		},
		{
			"top_actors_by_revenue",
			"Rank actors by the revenue generated by their films.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopActorsByRevenue(ctx, in.TopN))
					})
			},
		},
		{
			"films_by_actor",
			"List the films an actor appears in, with category and release year.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in FilmsByActorInput) (EnvelopeOutput, error) {
						return s.envelope(s.FilmsByActor(ctx, in.ActorName))
					})
			},
		},
		{
			"top_rented_films",
			"Rank films by number of rentals.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in TopNInput) (EnvelopeOutput, error) {
						return s.envelope(s.TopRentedFilms(ctx, in.TopN))
					})
			},
		},
		{
			"run_safe_query",
			"Execute a read-only SQL SELECT against the Pagila database. Statements containing mutating keywords are refused with an explanation instead of an error, and unbounded statements get a LIMIT appended. Use list_tables and list_columns to discover the schema.",
			func(name, description string) error {
				return registerTool(s, server, name, description,
					func(ctx context.Context, in SafeQueryInput) (safequery.Outcome, error) {
						out, err := s.SafeQuery(ctx, in.SQL, in.Limit)
						if err != nil {
							return safequery.Outcome{}, err
						}
						return *out, nil
					})
			},
		},
	}

	for _, e := range entries {
		if err := e.register(e.name, e.description); err != nil {
			return fmt.Errorf("failed to register %s tool: %w", e.name, err)
		}
	}
	return nil
}

func (s *Service) envelope(env *report.Envelope, err error) (EnvelopeOutput, error) {
	if err != nil {
		return EnvelopeOutput{}, err
	}
	return EnvelopeOutput{Envelope: *env}, nil
}

func registerTool[In, Out any](s *Service, server *mcp.Server, name, description string, handler func(ctx context.Context, in In) (Out, error)) error {
	req, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}

	res, err := jsonschema.For[Out](nil)
	if err != nil {
		return fmt.Errorf("failed to create output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		start := s.clock.Now()
		out, err := handler(ctx, in)
		duration := s.clock.Since(start).Seconds()

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
			metrics.ToolCallDuration.WithLabelValues(name).Observe(duration)
			var zero Out
			return nil, zero, err
		}
		metrics.ToolCallsTotal.WithLabelValues(name, "success").Inc()
		metrics.ToolCallDuration.WithLabelValues(name).Observe(duration)
		return nil, out, nil
	})
	return nil
}
