package schedule

import (
	"time"

	"github.com/jiazeyu1987/hospitalscan/internal/task"
)

// Cron expressions for the reporting jobs.
const (
	// DailyReportCron fires every day at 02:00.
	DailyReportCron = "0 2 * * *"

	// WeeklyReportCron fires every Monday at 03:00.
	WeeklyReportCron = "0 3 * * 1"
)

// DefaultJobs returns the declarative default job set. Callers may override
// or extend it from configuration before registering.
func DefaultJobs() []JobSpec {
	return []JobSpec{
		{
			ID:           "tender_monitor",
			Trigger:      Trigger{Every: 6 * time.Hour},
			TaskType:     task.TypeTenderMonitor,
			MaxInstances: 2,
			Replace:      true,
		},
		{
			ID:           "hospital_scan",
			Trigger:      Trigger{Every: 24 * time.Hour},
			TaskType:     task.TypeHospitalScan,
			MaxInstances: 1,
			Replace:      true,
		},
	}
}
