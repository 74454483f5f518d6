package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/MMontoya03/mcp-database/internal/report"
	"github.com/MMontoya03/mcp-database/internal/safequery"
)

var testMCPImpl = &mcp.Implementation{Name: "pagila-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	svc := newTestService(t)

	srv := mcp.NewServer(testMCPImpl, nil)
	require.NoError(t, svc.Register(srv))

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool(%s)", name)
	require.False(t, result.IsError, "CallTool(%s) tool error", name)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "CallTool(%s): expected TextContent", name)
	return tc.Text
}

func TestMCPListsAllTools(t *testing.T) {
	session := mcpSession(t)

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{
		"list_tables",
		"list_columns",
		"top_customers_by_rentals",
		"top_customers_by_revenue",
		"top_categories_by_revenue",
		"top_actors_by_film_count",
		"top_actors_by_revenue",
		"films_by_actor",
		"top_rented_films",
		"run_safe_query",
	}, names)
}

func TestMCPListTables(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "list_tables", map[string]any{})

	var resp EnvelopeOutput
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, "Available tables", resp.Envelope.Title)
	require.NotEmpty(t, resp.Envelope.Data)
}

func TestMCPListColumns(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "list_columns", map[string]any{"table_name": "rental"})

	var resp EnvelopeOutput
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Envelope.Data, 3)
}

func TestMCPTopCustomersByRentals(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "top_customers_by_rentals", map[string]any{"top_n": 1})

	var resp EnvelopeOutput
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Equal(t, "Top 1 customers by rentals", resp.Envelope.Title)
	require.Len(t, resp.Envelope.Data, 1)
	require.Equal(t, "MARY SMITH", resp.Envelope.Data[0]["customer"])
}

func TestMCPFilmsByActor(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "films_by_actor", map[string]any{"actor_name": "PENELOPE"})

	var resp EnvelopeOutput
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	require.Len(t, resp.Envelope.Data, 1)
	require.Equal(t, "ACADEMY DINOSAUR", resp.Envelope.Data[0]["title"])
}

func TestMCPRunSafeQuery(t *testing.T) {
	session := mcpSession(t)

	t.Run("select", func(t *testing.T) {
		text := mcpCallTool(t, session, "run_safe_query", map[string]any{
			"sql": "SELECT title FROM film ORDER BY title",
		})

		var out struct {
			Envelope *report.Envelope `json:"envelope"`
			Notice   string           `json:"notice"`
		}
		require.NoError(t, json.Unmarshal([]byte(text), &out))
		require.NotNil(t, out.Envelope)
		require.Len(t, out.Envelope.Data, 2)
		require.Empty(t, out.Notice)
	})

	t.Run("rejected statement is a structured outcome, not a tool error", func(t *testing.T) {
		text := mcpCallTool(t, session, "run_safe_query", map[string]any{
			"sql": "DELETE FROM rental",
		})

		var out struct {
			Notice    string               `json:"notice"`
			Rejection *safequery.Rejection `json:"rejection"`
		}
		require.NoError(t, json.Unmarshal([]byte(text), &out))
		require.NotNil(t, out.Rejection)
		require.Equal(t, safequery.RejectionNotSelect, out.Rejection.Kind)
		require.NotEmpty(t, out.Notice)
	})

	t.Run("empty result yields a notice", func(t *testing.T) {
		text := mcpCallTool(t, session, "run_safe_query", map[string]any{
			"sql": "SELECT title FROM film WHERE title = 'NO SUCH FILM'",
		})

		var out struct {
			Envelope *report.Envelope `json:"envelope"`
			Notice   string           `json:"notice"`
		}
		require.NoError(t, json.Unmarshal([]byte(text), &out))
		require.Nil(t, out.Envelope)
		require.Equal(t, "query executed: no rows returned", out.Notice)
	})

	t.Run("bad sql is a tool error", func(t *testing.T) {
		result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
			Name:      "run_safe_query",
			Arguments: map[string]any{"sql": "SELECT * FROM no_such_table"},
		})
		require.NoError(t, err)
		require.True(t, result.IsError)

		tc, ok := result.Content[0].(*mcp.TextContent)
		require.True(t, ok)
		require.Contains(t, tc.Text, "no_such_table")
	})
}
