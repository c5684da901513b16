package cli

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/habitkit/internal/analytics"
	"github.com/julianstephens/habitkit/internal/constants"
)

var (
	heatmapLevels = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("22")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
	}
	idleCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	headerStyle   = lipgloss.NewStyle().Bold(true)
)

type StatsCmd struct {
	Timeline StatsTimelineCmd `cmd:"" help:"Daily scheduled vs completed counts." default:"1"`
	Months   StatsMonthsCmd   `cmd:"" help:"Monthly scheduled vs completed counts."`
	Month    StatsMonthCmd    `cmd:"" help:"Completion rate for the current month."`
	Heatmap  StatsHeatmapCmd  `cmd:"" help:"Completion heatmap."`
	Habits   StatsHabitsCmd   `cmd:"" help:"Per-habit completion rates."`
}

type StatsTimelineCmd struct {
	Days int  `help:"Number of days, ending today." default:"7"`
	JSON bool `help:"Print JSON."`
}

func (c *StatsTimelineCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	buckets := st.Analytics().CompletionTimeline(c.Days)
	if c.JSON {
		return ctx.writeJSON(buckets)
	}
	printBuckets(ctx, buckets)
	return nil
}

type StatsMonthsCmd struct {
	Months int  `help:"Number of months, ending with the current one. 0 starts at the first habit." default:"0"`
	JSON   bool `help:"Print JSON."`
}

func (c *StatsMonthsCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	buckets := st.Analytics().CompletionTimelineByMonth(c.Months)
	if c.JSON {
		return ctx.writeJSON(buckets)
	}
	printBuckets(ctx, buckets)
	return nil
}

type StatsMonthCmd struct {
	JSON bool `help:"Print JSON."`
}

func (c *StatsMonthCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	rate := st.Analytics().MonthlyCompletionRate()
	if c.JSON {
		return ctx.writeJSON(rate)
	}
	ctx.printf("This month: %d%% (%d/%d)\n", rate.Rate, rate.Completed, rate.Scheduled)
	return nil
}

type StatsHeatmapCmd struct {
	Days int  `help:"Number of days, ending today." default:"28"`
	JSON bool `help:"Print JSON."`
}

func (c *StatsHeatmapCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	cells := st.Analytics().HeatmapData(c.Days)
	if c.JSON {
		return ctx.writeJSON(cells)
	}
	ctx.println(renderHeatmap(cells))
	return nil
}

type StatsHabitsCmd struct {
	Days int  `help:"Window in days, ending today." default:"30"`
	JSON bool `help:"Print JSON."`
}

func (c *StatsHabitsCmd) Run(ctx *Context) error {
	st, err := ctx.Open()
	if err != nil {
		return err
	}
	stats := st.Analytics().HabitStats(c.Days)
	if c.JSON {
		return ctx.writeJSON(stats)
	}
	if len(stats) == 0 {
		ctx.println("No habits found.")
		return nil
	}
	for _, s := range stats {
		ctx.printf("%-20s %3d%%  (%d/%d)\n", s.Habit.Name, s.Rate, s.Completed, s.Scheduled)
	}
	return nil
}

func printBuckets(ctx *Context, buckets []analytics.Bucket) {
	for _, b := range buckets {
		ctx.printf("%-10s %3d%%  (%d/%d)\n", b.DayKey, analytics.RatePercent(b.CompletedCount, b.ScheduledCount), b.CompletedCount, b.ScheduledCount)
	}
}

// heatmapLevel maps a cell to 0..4 by its completion share.
func heatmapLevel(cell analytics.Bucket) int {
	if cell.ScheduledCount == 0 || cell.CompletedCount == 0 {
		return 0
	}
	level := (cell.CompletedCount*4 + cell.ScheduledCount - 1) / cell.ScheduledCount
	if level > 4 {
		level = 4
	}
	return level
}

// renderHeatmap draws one column per day, in rows of seven.
func renderHeatmap(cells []analytics.Bucket) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Heatmap"))
	b.WriteString("\n")
	for i, cell := range cells {
		if i > 0 && i%constants.DefaultTimelineDays == 0 {
			b.WriteString("\n")
		}
		if cell.ScheduledCount == 0 {
			b.WriteString(idleCellStyle.Render("·"))
		} else {
			b.WriteString(heatmapLevels[heatmapLevel(cell)].Render("■"))
		}
		b.WriteString(" ")
	}
	return strings.TrimRight(b.String(), " ")
}

func (c *Context) writeJSON(v interface{}) error {
	enc := json.NewEncoder(c.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
