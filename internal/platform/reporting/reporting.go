// Package reporting serves operational measures computed straight from
// the relational store. Each measure is a fixed set of SQL sections
// evaluated inside one transaction, so the numbers in a report are
// mutually consistent even while the rest of the system keeps writing.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/db"
	"github.com/medicore/medicore/pkg/respond"
)

var ErrUnknownMeasure = errors.New("unknown measure")

// Section is one query of a measure. Its rows appear in the report
// under Key.
type Section struct {
	Key string
	SQL string
}

// Measure is a predefined report definition. The SQL never leaves the
// server; clients see only id, name and description.
type Measure struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	sections []Section
}

// Measures is the fixed catalogue. Definitions live in code, not in
// the database, so a deploy is the only way to change what a report
// computes.
var Measures = []Measure{
	{
		ID:          "hospital-census",
		Name:        "Hospital Census",
		Description: "Registered patient totals and open admissions by ward",
		sections: []Section{
			{Key: "patients", SQL: `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE active) AS active FROM patients`},
			{Key: "occupancy", SQL: `SELECT ward, COUNT(*) AS occupied FROM admissions WHERE status = 'admitted' GROUP BY ward ORDER BY ward`},
		},
	},
	{
		ID:          "appointment-load",
		Name:        "Appointment Load",
		Description: "Appointments by status and the upcoming scheduled count",
		sections: []Section{
			{Key: "by_status", SQL: `SELECT status, COUNT(*) AS total FROM appointments GROUP BY status ORDER BY total DESC`},
			{Key: "upcoming", SQL: `SELECT COUNT(*) AS total FROM appointments WHERE status = 'scheduled' AND starts_at >= now()`},
		},
	},
	{
		ID:          "order-backlog",
		Name:        "Order Backlog",
		Description: "Open clinical orders by type and the oldest waiting order",
		sections: []Section{
			{Key: "by_type", SQL: `SELECT order_type, COUNT(*) AS open FROM orders WHERE status IN ('ordered', 'in_progress') GROUP BY order_type ORDER BY order_type`},
			{Key: "oldest_open", SQL: `SELECT MIN(created_at) AS oldest FROM orders WHERE status IN ('ordered', 'in_progress')`},
		},
	},
	{
		ID:          "billing-summary",
		Name:        "Billing Summary",
		Description: "Invoice counts and amounts by status, and today's collections",
		sections: []Section{
			{Key: "by_status", SQL: `SELECT status, COUNT(*) AS total, COALESCE(SUM(total_cents), 0) AS amount_cents FROM invoices GROUP BY status ORDER BY status`},
			{Key: "collected_today", SQL: `SELECT COALESCE(SUM(total_cents), 0) AS amount_cents FROM invoices WHERE status = 'paid' AND paid_at >= date_trunc('day', now())`},
		},
	},
}

// FindMeasure returns the measure with the given id, or nil.
func FindMeasure(id string) *Measure {
	for i := range Measures {
		if Measures[i].ID == id {
			return &Measures[i]
		}
	}
	return nil
}

// Report is one evaluation of a measure. Results holds each section's
// rows keyed by section, rows rendered as column-name maps.
type Report struct {
	MeasureID   string                              `json:"measure_id"`
	MeasureName string                              `json:"measure_name"`
	GeneratedAt time.Time                           `json:"generated_at"`
	Results     map[string][]map[string]interface{} `json:"results"`
}

type Service struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, now: time.Now}
}

// Evaluate runs every section of the measure inside one transaction.
func (s *Service) Evaluate(ctx context.Context, id string) (*Report, error) {
	m := FindMeasure(id)
	if m == nil {
		return nil, ErrUnknownMeasure
	}

	report := &Report{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: s.now().UTC(),
		Results:     map[string][]map[string]interface{}{},
	}
	err := db.RunInTx(ctx, s.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		for _, sec := range m.sections {
			rows, err := tx.Query(ctx, sec.SQL)
			if err != nil {
				return fmt.Errorf("measure %s section %s: %w", m.ID, sec.Key, err)
			}
			collected, err := collect(rows)
			if err != nil {
				return fmt.Errorf("measure %s section %s: %w", m.ID, sec.Key, err)
			}
			report.Results[sec.Key] = collected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// collect renders rows into maps keyed by column name.
func collect(rows pgx.Rows) ([]map[string]interface{}, error) {
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, rbac *auth.RBAC) {
	g := api.Group("/reports", rbac.Require("admin", "doctor"))
	g.GET("/measures", h.ListMeasures)
	g.GET("/measures/:id/evaluate", h.Evaluate)
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return respond.OK(c, http.StatusOK, Measures)
}

func (h *Handler) Evaluate(c echo.Context) error {
	report, err := h.svc.Evaluate(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrUnknownMeasure) {
			return echo.NewHTTPError(http.StatusNotFound, "measure not found")
		}
		return err
	}
	return respond.OK(c, http.StatusOK, report)
}
