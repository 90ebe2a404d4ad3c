package cli

import (
	"context"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"viralshorts/manager-go/internal/config"
	"viralshorts/manager-go/internal/jobs"
	"viralshorts/manager-go/internal/quota"
	"viralshorts/manager-go/internal/script"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/voice"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func runVoicesList(args []string) error {
	fs := flag.NewFlagSet("Voices:List", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	rows := make([][]string, 0, len(voice.Catalog))
	for _, v := range voice.Catalog {
		rows = append(rows, []string{v.ShortName(), v.Name, v.Locale, v.Gender})
	}
	fmt.Println(renderTable([]string{"Voice", "ID", "Locale", "Gender"}, rows, nil))
	return nil
}

// runTitleStyles shows the learned title styles, or replaces them when styles are given.
func runTitleStyles(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("Variety:TitleStyles", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	variety := state.NewVariety(cfg.DataDir)
	if fs.NArg() > 0 {
		styles, err := parseTitleStyles(fs.Args())
		if err != nil {
			return err
		}
		if err := variety.SetBestTitleStyles(ctx, styles); err != nil {
			return err
		}
	}
	styles, err := variety.BestTitleStyles(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(script.TitleStyles))
	for _, style := range script.TitleStyles {
		preferred := ""
		if slices.Contains(styles, style) {
			preferred = "yes"
		}
		rows = append(rows, []string{style, preferred})
	}
	fmt.Println(renderTable([]string{"Title style", "Preferred"}, rows, nil))
	return nil
}

// parseTitleStyles accepts space- or comma-separated style names.
func parseTitleStyles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		for _, style := range strings.Split(arg, ",") {
			style = strings.TrimSpace(style)
			if style == "" || slices.Contains(out, style) {
				continue
			}
			if !slices.Contains(script.TitleStyles, style) {
				return nil, fmt.Errorf("unknown title style %q (known: %s)", style, strings.Join(script.TitleStyles, ", "))
			}
			out = append(out, style)
		}
	}
	return out, nil
}

func runBudgetStatus(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("Budget:Status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	budget := jobs.NewBudget(cfg)
	statuses, err := budget.Status(ctx)
	if err != nil {
		return err
	}
	remaining, err := budget.EstimateVideosRemaining(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderBudgetTable(statuses))
	fmt.Printf("Estimated shorts remaining today: %d (%d tokens per short)\n", remaining, quota.TokensPerVideo())

	uploads := state.NewUploads(cfg.DataDir)
	rows := [][]string{}
	for _, platform := range []string{state.PlatformYouTube, state.PlatformDailymotion} {
		slots, err := uploads.SlotsAvailable(ctx, platform)
		if err != nil {
			return err
		}
		wait, err := uploads.WaitTime(ctx, platform)
		if err != nil {
			return err
		}
		rows = append(rows, []string{platform, strconv.Itoa(slots), wait.Round(time.Second).String()})
	}
	fmt.Println(renderTable([]string{"Platform", "Upload slots", "Next slot in"}, rows, []columnAlignment{alignLeft, alignRight, alignRight}))
	return nil
}

func renderBudgetTable(statuses []quota.BudgetStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		cooldown := ""
		if s.InCooldown {
			cooldown = "cooling down"
		}
		rows = append(rows, []string{
			s.Name,
			strconv.Itoa(s.Used),
			strconv.Itoa(s.Limit),
			strconv.Itoa(s.Available),
			strconv.Itoa(s.Calls),
			cooldown,
		})
	}
	return renderTable(
		[]string{"Provider", "Used", "Limit", "Available", "Calls", "State"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func runQuotaStatus(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("Quota:Status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	st, err := quota.NewPools(cfg.DataDir).Status(ctx)
	if err != nil {
		return err
	}
	fmt.Println(renderPoolTable(st))

	stats, err := quota.NewQualityHistory(cfg.DataDir).Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf(
		"Quality: %d shorts, first-attempt average %.1f, regeneration rate %.0f%%\n",
		stats.TotalVideos, stats.AvgFirstAttemptScore, stats.RegenerationRate*100,
	)
	return nil
}

func renderPoolTable(st quota.PoolStatus) string {
	rows := make([][]string, 0, len(st.Pools)+1)
	for _, p := range st.Pools {
		rows = append(rows, []string{p.Name, strconv.Itoa(p.Used), strconv.Itoa(p.TotalQuota), strconv.Itoa(p.Available()), strconv.Itoa(len(p.Models))})
	}
	rows = append(rows, []string{"total", strconv.Itoa(st.Summary.TotalUsed), strconv.Itoa(st.Summary.TotalDailyQuota), strconv.Itoa(st.Summary.TotalAvailable), strconv.Itoa(len(st.Models))})
	return renderTable(
		[]string{"Pool", "Used", "Quota", "Available", "Models"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderBatchTable(result jobs.ProduceResult) string {
	rows := make([][]string, 0, len(result.Shorts))
	for _, r := range result.Shorts {
		outcome := r.Output
		if r.Err != nil {
			outcome = "failed at " + r.FailedStage + ": " + r.Err.Error()
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ShortID, 10),
			r.Category,
			r.Topic,
			strconv.FormatFloat(r.Score, 'f', 1, 64),
			outcome,
			r.YouTube,
			r.Dailymotion,
		})
	}
	return renderTable(
		[]string{"Short", "Category", "Topic", "Score", "Output", "YouTube", "Dailymotion"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	)
}
