// Package catalog holds the fixed set of analytical reports exposed over the
// Pagila rental dataset, plus the safe-query passthrough. Every entry issues
// one hand-written aggregation through the store and normalizes the result
// into the shared report envelope.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/MMontoya03/mcp-database/internal/report"
	"github.com/MMontoya03/mcp-database/internal/safequery"
	"github.com/MMontoya03/mcp-database/internal/store"
)

const (
	defaultSchemaName = "public"
	defaultTopN       = 10
)

type Config struct {
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Executor store.Executor
	Gate     *safequery.Gate

	// SchemaName scopes the introspection reports. Postgres deployments use
	// "public"; DuckDB uses "main".
	SchemaName string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if cfg.Gate == nil {
		return fmt.Errorf("gate is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SchemaName == "" {
		cfg.SchemaName = defaultSchemaName
	}
	return nil
}

// Service executes the catalog entries. It holds no per-request state; every
// call re-executes against live data on its own scoped connection.
type Service struct {
	log        *slog.Logger
	clock      clockwork.Clock
	exec       store.Executor
	gate       *safequery.Gate
	schemaName string
}

func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate catalog config: %w", err)
	}
	return &Service{
		log:        cfg.Logger,
		clock:      cfg.Clock,
		exec:       cfg.Executor,
		gate:       cfg.Gate,
		schemaName: cfg.SchemaName,
	}, nil
}

const (
	queryTopCustomersByRentals = `
		SELECT c.customer_id, c.first_name || ' ' || c.last_name AS customer,
		       COUNT(r.rental_id) AS rentals
		FROM customer c
		JOIN rental r ON r.customer_id = c.customer_id
		GROUP BY c.customer_id, c.first_name, c.last_name
		ORDER BY COUNT(r.rental_id) DESC
		LIMIT $1`

	queryTopCustomersByRevenue = `
		SELECT c.customer_id, c.first_name || ' ' || c.last_name AS customer,
		       SUM(p.amount) AS revenue
		FROM customer c
		JOIN payment p ON p.customer_id = c.customer_id
		GROUP BY c.customer_id, c.first_name, c.last_name
		ORDER BY SUM(p.amount) DESC
		LIMIT $1`

	queryTopCategoriesByRevenue = `
		SELECT cat.name AS category, SUM(p.amount) AS revenue
		FROM category cat
		JOIN film_category fc ON fc.category_id = cat.category_id
		JOIN film f ON f.film_id = fc.film_id
		JOIN inventory i ON i.film_id = f.film_id
		JOIN rental r ON r.inventory_id = i.inventory_id
		JOIN payment p ON p.rental_id = r.rental_id
		GROUP BY cat.name
		ORDER BY SUM(p.amount) DESC
		LIMIT $1`

	queryTopActorsByFilmCount = `
		SELECT a.actor_id, a.first_name || ' ' || a.last_name AS actor,
		       COUNT(fa.film_id) AS films
		FROM actor a
		JOIN film_actor fa ON fa.actor_id = a.actor_id
		GROUP BY a.actor_id, a.first_name, a.last_name
		ORDER BY COUNT(fa.film_id) DESC
		LIMIT $1`

	queryTopActorsByRevenue = `
		SELECT a.actor_id, a.first_name || ' ' || a.last_name AS actor,
		       SUM(p.amount) AS revenue
		FROM actor a
		JOIN film_actor fa ON fa.actor_id = a.actor_id
		JOIN film f ON f.film_id = fa.film_id
		JOIN inventory i ON i.film_id = f.film_id
		JOIN rental r ON r.inventory_id = i.inventory_id
		JOIN payment p ON p.rental_id = r.rental_id
		GROUP BY a.actor_id, a.first_name, a.last_name
		ORDER BY SUM(p.amount) DESC
		LIMIT $1`

	queryFilmsByActor = `
		SELECT f.title, cat.name AS category, f.release_year
		FROM film f
		JOIN film_actor fa ON fa.film_id = f.film_id
		JOIN actor a ON a.actor_id = fa.actor_id
		JOIN film_category fc ON fc.film_id = f.film_id
		JOIN category cat ON cat.category_id = fc.category_id
		WHERE LOWER(a.first_name || ' ' || a.last_name) LIKE $1
		ORDER BY f.title`

	queryTopRentedFilms = `
		SELECT f.title, COUNT(r.rental_id) AS rentals
		FROM film f
		JOIN inventory i ON i.film_id = f.film_id
		JOIN rental r ON r.inventory_id = i.inventory_id
		GROUP BY f.title
		ORDER BY COUNT(r.rental_id) DESC
		LIMIT $1`
)

func normalizeTopN(n int) int {
	if n <= 0 {
		return defaultTopN
	}
	return n
}

// TopCustomersByRentals ranks customers by rental count.
func (s *Service) TopCustomersByRentals(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopCustomersByRentals, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d customers by rentals", topN),
		"Customers ranked by number of rentals.",
		res.Columns, res.Rows,
		report.WithSummary("Customers in the leading positions account for the bulk of rental activity."),
		report.WithFormats(map[int]report.Format{2: report.FormatNumber}),
	), nil
}

// TopCustomersByRevenue ranks customers by summed payment amounts.
func (s *Service) TopCustomersByRevenue(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopCustomersByRevenue, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d customers by revenue", topN),
		"Customers ranked by total payments.",
		res.Columns, res.Rows,
		report.WithSummary("This ranking identifies the most profitable customers."),
		report.WithFormats(map[int]report.Format{2: report.FormatCurrency}),
	), nil
}

// TopCategoriesByRevenue ranks film categories by revenue through the
// category -> film -> inventory -> rental -> payment chain.
func (s *Service) TopCategoriesByRevenue(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopCategoriesByRevenue, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d categories by revenue", topN),
		"Film categories ranked by total revenue.",
		res.Columns, res.Rows,
		report.WithSummary("The leading categories concentrate most of the revenue, which helps prioritize inventory and marketing."),
		report.WithFormats(map[int]report.Format{1: report.FormatCurrency}),
	), nil
}

// TopActorsByFilmCount ranks actors by how many films they appear in.
func (s *Service) TopActorsByFilmCount(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopActorsByFilmCount, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d actors by film count", topN),
		"Actors ranked by number of films in the catalog.",
		res.Columns, res.Rows,
		report.WithSummary("Actors in the leading positions have the strongest presence in the catalog."),
		report.WithFormats(map[int]report.Format{2: report.FormatNumber}),
	), nil
}

// TopActorsByRevenue ranks actors by revenue generated by their films.
func (s *Service) TopActorsByRevenue(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopActorsByRevenue, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d actors by revenue", topN),
		"Actors ranked by total revenue generated by their films.",
		res.Columns, res.Rows,
		report.WithSummary("This ranking identifies the actors with the largest economic impact in the catalog."),
		report.WithFormats(map[int]report.Format{2: report.FormatCurrency}),
	), nil
}

// FilmsByActor lists the films, categories and release years for every actor
// whose full name matches the given fragment, case-insensitively.
func (s *Service) FilmsByActor(ctx context.Context, actorName string) (*report.Envelope, error) {
	pattern := "%" + strings.ToLower(actorName) + "%"
	res, err := s.exec.Execute(ctx, queryFilmsByActor, pattern)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Films featuring %s", actorName),
		fmt.Sprintf("%d films matched, ordered by title.", len(res.Rows)),
		res.Columns, res.Rows,
	), nil
}

// TopRentedFilms ranks films by rental count.
func (s *Service) TopRentedFilms(ctx context.Context, topN int) (*report.Envelope, error) {
	topN = normalizeTopN(topN)
	res, err := s.exec.Execute(ctx, queryTopRentedFilms, topN)
	if err != nil {
		return nil, err
	}
	return report.Build(
		fmt.Sprintf("Top %d most rented films", topN),
		"Films ranked by number of rentals.",
		res.Columns, res.Rows,
		report.WithSummary("The most rented titles are the strongest candidates for additional inventory."),
		report.WithFormats(map[int]report.Format{1: report.FormatNumber}),
	), nil
}

// SafeQuery runs a free-form statement through the safe-query gate.
func (s *Service) SafeQuery(ctx context.Context, sql string, limit int) (*safequery.Outcome, error) {
	return s.gate.Run(ctx, sql, limit)
}
