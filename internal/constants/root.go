package constants

const (
	AppName = "habitkit"

	DateFormat  = "2006-01-02"
	MonthFormat = "2006-01"
	TimeFormat  = "15:04"

	// Storage keys for the local blob store.
	HabitsKey      = "habits"
	CompletionsKey = "completions"
	UndoKey        = "undo"

	// StreakHorizonDays bounds how far back streak scans look.
	StreakHorizonDays = 365

	DefaultTimelineDays  = 7
	DefaultHeatmapDays   = 28
	DefaultStatsDays     = 30
	DefaultRemoteTimeout = 15 // seconds
	DefaultServerAddr    = ":8080"

	DefaultKeyringUser = "auth-token"
	TokenEnvVar        = "HABITKIT_TOKEN"

	ConfigFileName = "config.yaml"
	LogFileName    = "habitkit.log"
)
