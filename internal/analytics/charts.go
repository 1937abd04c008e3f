// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

package analytics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/logging"
)

// Chart output filenames under the analytics output directory.
const (
	PeakHoursChartFile = "peak_hours.html"
	TopGamesChartFile  = "top_games.html"
	WeekendChartFile   = "weekend_analysis.html"
	TrendsChartFile    = "historical_overview.html"
	LanguagesChartFile = "language_distribution.html"
)

// ChartWriter renders the aggregate queries as standalone HTML charts.
type ChartWriter struct {
	db  *database.DB
	cfg *config.AnalyticsConfig
}

// NewChartWriter creates a chart writer rendering into cfg.OutputDir.
func NewChartWriter(db *database.DB, cfg *config.AnalyticsConfig) *ChartWriter {
	return &ChartWriter{db: db, cfg: cfg}
}

// Run renders every chart. Charts with no underlying data are skipped
// with a warning rather than failing the run.
func (c *ChartWriter) Run(ctx context.Context) error {
	if err := os.MkdirAll(c.cfg.OutputDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", c.cfg.OutputDir, err)
	}

	renderers := []struct {
		name string
		fn   func(context.Context) error
	}{
		{PeakHoursChartFile, c.renderPeakHours},
		{TopGamesChartFile, c.renderTopGames},
		{WeekendChartFile, c.renderWeekend},
		{TrendsChartFile, c.renderTrends},
		{LanguagesChartFile, c.renderLanguages},
	}
	for _, r := range renderers {
		if err := r.fn(ctx); err != nil {
			return fmt.Errorf("rendering %s: %w", r.name, err)
		}
	}
	return nil
}

// writeChart renders a chart to a file in the output directory.
func (c *ChartWriter) writeChart(name string, render func(f *os.File) error) error {
	path := filepath.Join(c.cfg.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := render(f); err != nil {
		return err
	}
	logging.Info().Str("path", path).Msg("Chart written")
	return f.Close()
}

func (c *ChartWriter) renderPeakHours(ctx context.Context) error {
	stats, err := c.db.PeakHours(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logging.Warn().Msg("No hourly data, skipping peak hours chart")
		return nil
	}

	hours := make([]string, len(stats))
	avg := make([]opts.LineData, len(stats))
	total := make([]opts.BarData, len(stats))
	for i, h := range stats {
		hours[i] = fmt.Sprintf("%02d:00", h.HourOfDay)
		avg[i] = opts.LineData{Value: h.AvgViewers}
		total[i] = opts.BarData{Value: h.TotalViewers}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Average Viewers by Hour of Day",
		Subtitle: "UTC hours across all ingested snapshots",
	}))
	line.SetXAxis(hours).AddSeries("Avg viewers", avg)

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: "Total Viewers by Hour of Day",
	}))
	bar.SetXAxis(hours).AddSeries("Total viewers", total)

	return c.writeChart(PeakHoursChartFile, func(f *os.File) error {
		if err := line.Render(f); err != nil {
			return err
		}
		return bar.Render(f)
	})
}

func (c *ChartWriter) renderTopGames(ctx context.Context) error {
	stats, err := c.db.TopGames(ctx, c.cfg.MinStreams, c.cfg.TopN)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logging.Warn().Msg("No game data, skipping top games chart")
		return nil
	}

	names := make([]string, len(stats))
	avg := make([]opts.BarData, len(stats))
	for i, g := range stats {
		names[i] = g.GameName
		avg[i] = opts.BarData{Value: g.AvgViewers}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Top Games by Average Viewers",
		Subtitle: fmt.Sprintf("Games with at least %d snapshots", c.cfg.MinStreams),
	}))
	bar.SetXAxis(names).AddSeries("Avg viewers", avg)

	return c.writeChart(TopGamesChartFile, func(f *os.File) error {
		return bar.Render(f)
	})
}

func (c *ChartWriter) renderWeekend(ctx context.Context) error {
	stats, err := c.db.WeekendBreakdown(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logging.Warn().Msg("No weekday data, skipping weekend chart")
		return nil
	}

	days := make([]string, len(stats))
	avg := make([]opts.BarData, len(stats))
	streams := make([]opts.BarData, len(stats))
	for i, d := range stats {
		days[i] = d.Weekday
		avg[i] = opts.BarData{Value: d.AvgViewers}
		streams[i] = opts.BarData{Value: d.StreamCount}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: "Viewership by Day of Week",
	}))
	bar.SetXAxis(days).
		AddSeries("Avg viewers", avg).
		AddSeries("Streams", streams)

	return c.writeChart(WeekendChartFile, func(f *os.File) error {
		return bar.Render(f)
	})
}

func (c *ChartWriter) renderTrends(ctx context.Context) error {
	trends, err := c.db.DailyTrends(ctx)
	if err != nil {
		return err
	}
	if len(trends) == 0 {
		logging.Warn().Msg("No daily data, skipping trends chart")
		return nil
	}

	dates := make([]string, len(trends))
	streams := make([]opts.LineData, len(trends))
	viewers := make([]opts.LineData, len(trends))
	for i, d := range trends {
		dates[i] = d.Date.Format("2006-01-02")
		streams[i] = opts.LineData{Value: d.StreamCount}
		viewers[i] = opts.LineData{Value: d.TotalViewers}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: "Daily Streams and Viewers",
	}))
	line.SetXAxis(dates).
		AddSeries("Streams", streams).
		AddSeries("Total viewers", viewers)

	return c.writeChart(TrendsChartFile, func(f *os.File) error {
		return line.Render(f)
	})
}

func (c *ChartWriter) renderLanguages(ctx context.Context) error {
	stats, err := c.db.LanguageDistribution(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logging.Warn().Msg("No language data, skipping language chart")
		return nil
	}

	data := make([]opts.PieData, len(stats))
	for i, l := range stats {
		data[i] = opts.PieData{Name: l.Language, Value: l.StreamCount}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title: "Streams by Broadcast Language",
	}))
	pie.AddSeries("Streams", data)

	return c.writeChart(LanguagesChartFile, func(f *os.File) error {
		return pie.Render(f)
	})
}
