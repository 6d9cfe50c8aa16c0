// Package scheduler implements the scheduler command, the long-running
// daemon that fires recurring scans and maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jiazeyu1987/hospitalscan/cmd/common"
	"github.com/jiazeyu1987/hospitalscan/internal/config"
	"github.com/jiazeyu1987/hospitalscan/internal/schedule"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
)

// reaperInterval is how often terminal tasks past the retention age are
// swept out of the manager.
const reaperInterval = time.Hour

// Cmd represents the scheduler command.
var Cmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the recurring scan scheduler",
	Long: `Scheduler runs as a daemon: it registers the configured recurring jobs
(falling back to the built-in defaults when none are configured), fires them
on their triggers, and sweeps finished tasks. It runs until interrupted.

Examples:
  # Run with the built-in job set, persisting to PostgreSQL
  hospitalscan scheduler --postgres

  # Run jobs declared in a config file
  hospitalscan scheduler --config ./config.yaml
`,
	RunE: runScheduler,
}

// Command returns the scheduler command for use in the root command.
func Command() *cobra.Command {
	Cmd.Flags().Bool("postgres", false, "persist results to PostgreSQL")
	return Cmd
}

func runScheduler(cmd *cobra.Command, _ []string) error {
	opts := common.OptionsFromCommand(cmd)
	opts.UsePostgres, _ = cmd.Flags().GetBool("postgres")

	deps, err := common.Build(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	sched := schedule.New(deps.Manager, deps.Logger, nil)

	if regErr := registerScanJobs(sched, deps.Cfg.Scheduler.Jobs); regErr != nil {
		return regErr
	}
	if regErr := registerMaintenanceJobs(sched, deps); regErr != nil {
		return regErr
	}

	sched.Start()
	defer sched.Stop()

	renderJobs(sched.ListJobs())
	deps.Logger.Info("Scheduler started", "jobs", len(sched.ListJobs()))

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	deps.Logger.Info("Shutting down scheduler")
	return nil
}

// registerScanJobs registers the configured recurring scans, or the
// built-in defaults when the configuration declares none.
func registerScanJobs(sched *schedule.Scheduler, jobs []config.JobConfig) error {
	if len(jobs) == 0 {
		for _, spec := range schedule.DefaultJobs() {
			if err := sched.RegisterJob(spec); err != nil {
				return fmt.Errorf("failed to register default job %q: %w", spec.ID, err)
			}
		}
		return nil
	}

	for _, jc := range jobs {
		spec := schedule.JobSpec{
			ID: jc.ID,
			Trigger: schedule.Trigger{
				Every: jc.Every,
				Cron:  jc.Cron,
			},
			TaskType:     task.Type(jc.TaskType),
			MaxInstances: jc.MaxInstances,
			Replace:      true,
		}
		if len(jc.URLs) > 0 {
			spec.TaskConfig = map[string]any{"urls": jc.URLs}
		}
		if err := sched.RegisterJob(spec); err != nil {
			return fmt.Errorf("failed to register job %q: %w", jc.ID, err)
		}
	}
	return nil
}

// registerMaintenanceJobs wires the task reaper and the report jobs.
func registerMaintenanceJobs(sched *schedule.Scheduler, deps *common.Deps) error {
	reaper := func(_ context.Context) error {
		if reaped := deps.Manager.ReapExpired(); reaped > 0 {
			deps.Logger.Info("Reaped finished tasks", "count", reaped)
		}
		return nil
	}
	if err := sched.RegisterFunc("task_reaper", schedule.Trigger{Every: reaperInterval}, reaper); err != nil {
		return fmt.Errorf("failed to register task reaper: %w", err)
	}

	daily := schedule.Trigger{Cron: schedule.DailyReportCron}
	if err := sched.RegisterFunc("daily_report", daily, reportJob(deps, "daily")); err != nil {
		return fmt.Errorf("failed to register daily report: %w", err)
	}

	weekly := schedule.Trigger{Cron: schedule.WeeklyReportCron}
	if err := sched.RegisterFunc("weekly_report", weekly, reportJob(deps, "weekly")); err != nil {
		return fmt.Errorf("failed to register weekly report: %w", err)
	}

	return nil
}

// reportJob summarizes task outcomes since the last sweep. Counters come
// from the manager's task table; terminal tasks are kept there until the
// reaper ages them out, so the window roughly matches the report period.
func reportJob(deps *common.Deps, period string) func(context.Context) error {
	return func(_ context.Context) error {
		var completed, failed, newRecords, duplicates int
		for _, view := range deps.Manager.List() {
			switch view.Status {
			case task.StatusStopped.String():
				completed++
			case task.StatusError.String():
				failed++
			}
			newRecords += intResult(view.Result, "new_records")
			duplicates += intResult(view.Result, "duplicates")
		}

		deps.Logger.Info("Scan report",
			"period", period,
			"tasks_completed", completed,
			"tasks_failed", failed,
			"new_records", newRecords,
			"duplicates", duplicates,
		)
		return nil
	}
}

func intResult(result map[string]any, key string) int {
	if result == nil {
		return 0
	}
	if v, ok := result[key].(int); ok {
		return v
	}
	return 0
}

func renderJobs(jobs []schedule.JobView) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Job", "Trigger", "Type", "Max", "Next Run"})

	for _, j := range jobs {
		taskType := string(j.TaskType)
		if taskType == "" {
			taskType = "maintenance"
		}
		next := "-"
		if !j.NextRun.IsZero() {
			next = j.NextRun.Format(time.RFC3339)
		}
		t.AppendRow(table.Row{j.ID, j.Trigger, taskType, j.MaxInstances, next})
	}

	t.Render()
}
