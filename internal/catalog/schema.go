package catalog

import (
	"context"
	"fmt"

	"github.com/MMontoya03/mcp-database/internal/report"
)

// Introspection reports run against the information_schema metadata views,
// which both supported drivers expose. Comparisons there are
// case-insensitive in practice because Pagila identifiers are lower-case.
const (
	queryListTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`

	queryListColumns = `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
)

// ListTables reports every table in the configured schema.
func (s *Service) ListTables(ctx context.Context) (*report.Envelope, error) {
	res, err := s.exec.Execute(ctx, queryListTables, s.schemaName)
	if err != nil {
		return nil, err
	}
	return report.Build(
		"Available tables",
		fmt.Sprintf("Tables in the %q schema of the Pagila database.", s.schemaName),
		res.Columns, res.Rows,
	), nil
}

// ListColumns reports the columns and declared types of one table.
func (s *Service) ListColumns(ctx context.Context, tableName string) (*report.Envelope, error) {
	res, err := s.exec.Execute(ctx, queryListColumns, s.schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Structure of %s", tableName),
		"Column names and data types.",
		res.Columns, res.Rows,
	), nil
}
