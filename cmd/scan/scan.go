// Package scan implements the scan command for running one monitoring task
// to completion.
package scan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jiazeyu1987/hospitalscan/cmd/common"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
)

// stopDrainTimeout bounds how long an interrupted scan waits for the worker
// to reach its next checkpoint.
const stopDrainTimeout = 30 * time.Second

// Cmd represents the scan command. It submits a single task, starts it, and
// waits for the result, printing the outcome counters when done.
var Cmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan task to completion",
	Long: `Scan submits a single task of the given type and waits for it to finish.

Task types:
  discovery       verify candidate URLs and record which are hospital sites
  tender_monitor  fetch tender pages, extract and persist new announcements
  hospital_scan   verify each site, then monitor the ones that pass

Examples:
  # Monitor two procurement pages for new tenders
  hospitalscan scan --type tender_monitor \
    --url https://a.example.cn/zbgg/ --url https://b.example.cn/cggg/

  # Verify candidate sites, persisting to PostgreSQL
  hospitalscan scan --type discovery --url https://a.example.cn --postgres

  # Full scan keeping only announcements mentioning a keyword
  hospitalscan scan --type tender_monitor --url https://a.example.cn/zbgg/ \
    --keyword 设备
`,
	RunE: runScan,
}

// Command returns the scan command for use in the root command.
func Command() *cobra.Command {
	Cmd.Flags().String("type", string(task.TypeTenderMonitor), "task type to run")
	Cmd.Flags().StringArray("url", nil, "target URL (repeatable)")
	Cmd.Flags().String("keyword", "", "keep only announcements whose title contains this keyword")
	Cmd.Flags().Int("min-score", 0, "minimum verification score for hospital_scan targets")
	Cmd.Flags().String("region", "", "region hint for discovery tasks")
	Cmd.Flags().Bool("postgres", false, "persist results to PostgreSQL")
	return Cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	opts := common.OptionsFromCommand(cmd)
	opts.UsePostgres, _ = cmd.Flags().GetBool("postgres")

	deps, err := common.Build(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	taskType, rawConfig, err := taskConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	id, err := deps.Manager.Submit(taskType, rawConfig)
	if err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}
	if err := deps.Manager.Start(id); err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}

	deps.Logger.Info("Task started", "task_id", id, "type", taskType)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if waitErr := deps.Manager.Wait(ctx, id); waitErr != nil {
		// Interrupted. Request a stop and give the worker a bounded
		// window to reach its next checkpoint.
		deps.Logger.Warn("Interrupt received, stopping task", "task_id", id)
		if stopErr := deps.Manager.Stop(id); stopErr != nil {
			// The task may have finished between the interrupt and
			// the stop request.
			deps.Logger.Debug("Stop request rejected", "task_id", id, "error", stopErr)
		}
		drainCtx, drainCancel := context.WithTimeout(context.Background(), stopDrainTimeout)
		defer drainCancel()
		_ = deps.Manager.Wait(drainCtx, id)
	}

	view, err := deps.Manager.Get(id)
	if err != nil {
		return fmt.Errorf("failed to read task state: %w", err)
	}

	renderView(view)

	if view.Error != "" {
		return fmt.Errorf("task ended in error: %s", view.Error)
	}
	return nil
}

// taskConfigFromFlags builds the raw task configuration, including only the
// keys relevant to the chosen type so unknown-key validation stays strict.
func taskConfigFromFlags(cmd *cobra.Command) (task.Type, map[string]any, error) {
	typeStr, err := cmd.Flags().GetString("type")
	if err != nil {
		return "", nil, fmt.Errorf("failed to read type flag: %w", err)
	}
	taskType := task.Type(typeStr)
	if !taskType.Valid() {
		return "", nil, fmt.Errorf("unknown task type %q", typeStr)
	}

	urls, err := cmd.Flags().GetStringArray("url")
	if err != nil {
		return "", nil, fmt.Errorf("failed to read url flag: %w", err)
	}

	rawConfig := map[string]any{}
	if len(urls) > 0 {
		rawConfig["urls"] = urls
	}

	switch taskType {
	case task.TypeDiscovery:
		if region, _ := cmd.Flags().GetString("region"); region != "" {
			rawConfig["region"] = region
		}
	case task.TypeTenderMonitor:
		if keyword, _ := cmd.Flags().GetString("keyword"); keyword != "" {
			rawConfig["keyword"] = keyword
		}
	case task.TypeHospitalScan:
		if cmd.Flags().Changed("min-score") {
			minScore, _ := cmd.Flags().GetInt("min-score")
			rawConfig["min_score"] = minScore
		}
	}

	return taskType, rawConfig, nil
}

func renderView(view task.View) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"task_id", view.ID})
	t.AppendRow(table.Row{"type", view.Type})
	t.AppendRow(table.Row{"status", view.Status})
	t.AppendRow(table.Row{"progress", fmt.Sprintf("%d%%", view.Progress)})
	if !view.EndedAt.IsZero() {
		t.AppendRow(table.Row{"duration", view.EndedAt.Sub(view.StartedAt).Round(time.Millisecond)})
	}
	if view.Error != "" {
		t.AppendRow(table.Row{"error", view.Error})
	}

	keys := make([]string, 0, len(view.Result))
	for k := range view.Result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.AppendRow(table.Row{k, fmt.Sprintf("%v", view.Result[k])})
	}

	t.Render()
}
