// Streamlens - Twitch Live Stream ETL and Analytics
// SPDX-License-Identifier: MIT

// Package analytics renders the aggregate queries as console reports
// and interactive HTML charts.
package analytics

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/streamlens/streamlens/internal/config"
	"github.com/streamlens/streamlens/internal/database"
	"github.com/streamlens/streamlens/internal/models"
)

// Reporter writes plain-text analytics reports to an output writer.
type Reporter struct {
	db  *database.DB
	cfg *config.AnalyticsConfig
	out io.Writer
}

// NewReporter creates a reporter writing to out.
func NewReporter(db *database.DB, cfg *config.AnalyticsConfig, out io.Writer) *Reporter {
	return &Reporter{db: db, cfg: cfg, out: out}
}

// Run prints every report section in order.
func (r *Reporter) Run(ctx context.Context) error {
	sections := []func(context.Context) error{
		r.SummarySection,
		r.PeakHoursSection,
		r.TopGamesSection,
		r.WeekendSection,
		r.LanguagesSection,
		r.TrendsSection,
		r.StreamersSection,
		r.IngestionSection,
	}
	for _, section := range sections {
		if err := section(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) header(title string) {
	fmt.Fprintf(r.out, "\n=== %s ===\n", title)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "n/a"
	}
	return t.Format("2006-01-02")
}

// SummarySection prints the overall dataset shape.
func (r *Reporter) SummarySection(ctx context.Context) error {
	s, err := r.db.Summary(ctx)
	if err != nil {
		return err
	}

	r.header("Data Summary")
	if s.TotalStreams == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	fmt.Fprintf(r.out, "Total stream snapshots: %d\n", s.TotalStreams)
	fmt.Fprintf(r.out, "Date range: %s to %s (%d days)\n", fmtDate(s.EarliestDate), fmtDate(s.LatestDate), s.UniqueDays)
	fmt.Fprintf(r.out, "Unique streamers: %d\n", s.UniqueStreamers)
	fmt.Fprintf(r.out, "Unique games: %d\n", s.UniqueGames)
	fmt.Fprintf(r.out, "Unique languages: %d\n", s.UniqueLanguages)
	fmt.Fprintf(r.out, "Total viewers: %d\n", s.TotalViewers)
	fmt.Fprintf(r.out, "Average viewers per stream: %.2f\n", s.AvgViewers)
	if s.FirstIngestion != nil && s.LastIngestion != nil {
		fmt.Fprintf(r.out, "Ingestion window: %s to %s\n",
			s.FirstIngestion.Format(time.RFC3339), s.LastIngestion.Format(time.RFC3339))
	}
	return nil
}

// PeakHoursSection prints hourly viewership with the peak hours called out.
func (r *Reporter) PeakHoursSection(ctx context.Context) error {
	stats, err := r.db.PeakHours(ctx)
	if err != nil {
		return err
	}

	r.header("Peak Hours Analysis")
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}
	fmt.Fprintf(r.out, "Analysing viewership patterns across %d hours\n\n", len(stats))

	peakAvg, peakTotal := stats[0], stats[0]
	for _, h := range stats[1:] {
		if h.AvgViewers > peakAvg.AvgViewers {
			peakAvg = h
		}
		if h.TotalViewers > peakTotal.TotalViewers {
			peakTotal = h
		}
	}
	fmt.Fprintf(r.out, "Peak hour by average viewers: %02d:00 UTC (%.0f avg viewers)\n", peakAvg.HourOfDay, peakAvg.AvgViewers)
	fmt.Fprintf(r.out, "Peak hour by total viewers: %02d:00 UTC (%d total viewers)\n\n", peakTotal.HourOfDay, peakTotal.TotalViewers)

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Hour\tStreams\tAvg Viewers\tTotal Viewers\tMax")
	for _, h := range stats {
		fmt.Fprintf(w, "%02d:00\t%d\t%.2f\t%d\t%d\n", h.HourOfDay, h.StreamCount, h.AvgViewers, h.TotalViewers, h.MaxViewers)
	}
	return w.Flush()
}

// TopGamesSection prints games ranked by average viewers.
func (r *Reporter) TopGamesSection(ctx context.Context) error {
	stats, err := r.db.TopGames(ctx, r.cfg.MinStreams, r.cfg.TopN)
	if err != nil {
		return err
	}

	r.header("Top Games Analysis")
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}
	fmt.Fprintf(r.out, "Analysing %d games with at least %d streams\n\n", len(stats), r.cfg.MinStreams)

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Game\tStreams\tAvg Viewers\tTotal Viewers\tStreamers")
	for _, g := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%d\t%d\n", g.GameName, g.StreamCount, g.AvgViewers, g.TotalViewers, g.UniqueStreamers)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\nMost popular game by average viewers: %s (%.0f avg viewers)\n", stats[0].GameName, stats[0].AvgViewers)
	return nil
}

// WeekendSection prints the weekday breakdown and the weekend-vs-weekday
// comparison.
func (r *Reporter) WeekendSection(ctx context.Context) error {
	stats, err := r.db.WeekendBreakdown(ctx)
	if err != nil {
		return err
	}

	r.header("Weekend vs Weekday Analysis")
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Day\tType\tStreams\tAvg Viewers\tTotal Viewers")
	for _, d := range stats {
		dayType := "Weekday"
		if d.IsWeekend {
			dayType = "Weekend"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\n", d.Weekday, dayType, d.StreamCount, d.AvgViewers, d.TotalViewers)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	weekendAvg, weekdayAvg := splitWeekendAverages(stats)
	if weekdayAvg > 0 {
		fmt.Fprintf(r.out, "\nWeekend average viewers: %.0f\n", weekendAvg)
		fmt.Fprintf(r.out, "Weekday average viewers: %.0f\n", weekdayAvg)
		fmt.Fprintf(r.out, "Weekend advantage: %+.1f%%\n", (weekendAvg-weekdayAvg)/weekdayAvg*100)
	}
	return nil
}

// splitWeekendAverages computes viewer-weighted averages for weekend and
// weekday snapshots.
func splitWeekendAverages(stats []models.WeekdayStats) (weekend, weekday float64) {
	var weekendViewers, weekdayViewers, weekendStreams, weekdayStreams int64
	for _, d := range stats {
		if d.IsWeekend {
			weekendViewers += d.TotalViewers
			weekendStreams += d.StreamCount
		} else {
			weekdayViewers += d.TotalViewers
			weekdayStreams += d.StreamCount
		}
	}
	if weekendStreams > 0 {
		weekend = float64(weekendViewers) / float64(weekendStreams)
	}
	if weekdayStreams > 0 {
		weekday = float64(weekdayViewers) / float64(weekdayStreams)
	}
	return weekend, weekday
}

// LanguagesSection prints the language distribution.
func (r *Reporter) LanguagesSection(ctx context.Context) error {
	stats, err := r.db.LanguageDistribution(ctx)
	if err != nil {
		return err
	}

	r.header("Language Distribution")
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Language\tStreams\tShare\tAvg Viewers")
	for _, l := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\n", l.Language, l.StreamCount, l.Percentage, l.AvgViewers)
	}
	return w.Flush()
}

// TrendsSection prints daily activity over the accumulated history.
func (r *Reporter) TrendsSection(ctx context.Context) error {
	trends, err := r.db.DailyTrends(ctx)
	if err != nil {
		return err
	}

	r.header("Daily Trends")
	if len(trends) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tStreams\tViewers\tAvg\tStreamers\tGames")
	for _, d := range trends {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%d\t%d\n",
			d.Date.Format("2006-01-02"), d.StreamCount, d.TotalViewers, d.AvgViewers, d.UniqueStreamers, d.UniqueGames)
	}
	return w.Flush()
}

// StreamersSection prints the top broadcasters by total viewers.
func (r *Reporter) StreamersSection(ctx context.Context) error {
	stats, err := r.db.TopStreamers(ctx, r.cfg.TopN)
	if err != nil {
		return err
	}

	r.header("Top Streamers")
	if len(stats) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Streamer\tSnapshots\tTotal Viewers\tAvg\tPeak\tDays Active")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%d\t%d\n",
			s.UserName, s.StreamCount, s.TotalViewers, s.AvgViewers, s.MaxViewers, s.DaysActive)
	}
	return w.Flush()
}

// IngestionSection prints per-day ingestion activity.
func (r *Reporter) IngestionSection(ctx context.Context) error {
	days, err := r.db.IngestionHistory(ctx)
	if err != nil {
		return err
	}

	r.header("Ingestion History")
	if len(days) == 0 {
		fmt.Fprintln(r.out, "No data found for analysis.")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Ingestion Day\tRows\tStream Dates")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%d\t%d\n", d.Date.Format("2006-01-02"), d.RowsIngested, d.UniqueStreamDates)
	}
	return w.Flush()
}
