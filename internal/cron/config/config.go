package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Review and retention scheduling cycle, daily at 15:00 UTC
	CronScheduleDailyCycle string `env:"CRON_SCHEDULE_DAILY_CYCLE" envDefault:"0 0 15 * * *"`
	// Review count snapshots, daily at 03:00 UTC
	CronScheduleReviewSnapshots string `env:"CRON_SCHEDULE_REVIEW_SNAPSHOTS" envDefault:"0 0 3 * * *"`
}
