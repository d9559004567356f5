package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const dialect = "sqlite3"

type viewRow struct {
	ID        int64  `db:"id" goqu:"skipinsert,skipupdate"`
	Target    string `db:"target"`
	Label     string `db:"label"`
	ViewedAt  Date   `db:"viewed_at" goqu:"skipupdate"`
	UserAgent string `db:"user_agent"`
	IPAddress string `db:"ip_address"`
}

type targetStatsRow struct {
	Target       string `db:"target"`
	Views        int64  `db:"view_count"`
	LastViewedAt *Date  `db:"last_viewed_at"`
}

type ViewsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewViewsRepo(db *sql.DB) *ViewsRepo {
	return &ViewsRepo{db: db, now: time.Now}
}

func (r *ViewsRepo) Create(ctx context.Context, target, label, userAgent, ipAddress string) (*internal.View, error) {
	executor := goqu.New(dialect, r.db)

	log.Debug().Str("target", target).Str("ip", ipAddress).Msg("recording view")

	row := viewRow{
		Target:    target,
		Label:     label,
		ViewedAt:  Date(r.now().UTC()),
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	result, err := executor.Insert("views").Rows(row).Executor().ExecContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("target", target).Msg("failed to record view")
		return nil, fmt.Errorf("failed to record view: %w", err)
	}

	row.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read view id: %w", err)
	}

	log.Debug().Int64("id", row.ID).Str("target", target).Msg("view recorded successfully")
	return row.toDomain(), nil
}

// ListRecent returns the latest views, newest first.
func (r *ViewsRepo) ListRecent(ctx context.Context, limit uint) ([]*internal.View, error) {
	executor := goqu.New(dialect, r.db)

	query := executor.From("views").Select(
		"id", "target", "label", "viewed_at", "user_agent", "ip_address",
	).Order(goqu.C("id").Desc()).Limit(limit)

	var rows []viewRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}

	return lo.Map(rows, func(row viewRow, _ int) *internal.View {
		return row.toDomain()
	}), nil
}

// StatsByTarget returns view counts per target, most viewed first.
func (r *ViewsRepo) StatsByTarget(ctx context.Context, limit uint) ([]*internal.TargetStats, error) {
	executor := goqu.New(dialect, r.db)

	query := executor.From("views").Select(
		goqu.C("target"),
		goqu.COUNT("*").As("view_count"),
		goqu.MAX("viewed_at").As("last_viewed_at"),
	).GroupBy("target").Order(goqu.I("view_count").Desc(), goqu.C("target").Asc()).Limit(limit)

	var rows []targetStatsRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to aggregate views: %w", err)
	}

	return lo.Map(rows, func(row targetStatsRow, _ int) *internal.TargetStats {
		return row.toDomain()
	}), nil
}

func (r *viewRow) toDomain() *internal.View {
	return &internal.View{
		ID:        r.ID,
		Target:    r.Target,
		Label:     r.Label,
		ViewedAt:  r.ViewedAt.Time(),
		UserAgent: r.UserAgent,
		IPAddress: r.IPAddress,
	}
}

func (r *targetStatsRow) toDomain() *internal.TargetStats {
	stats := &internal.TargetStats{
		Target: r.Target,
		Views:  r.Views,
	}
	if r.LastViewedAt != nil {
		stats.LastViewedAt = lo.ToPtr(r.LastViewedAt.Time())
	}
	return stats
}
