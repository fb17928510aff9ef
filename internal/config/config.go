package config

import (
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Correction CorrectionConfig `yaml:"correction"`
	Lock       LockConfig       `yaml:"lock"`
	Lessons    LessonsConfig    `yaml:"lessons"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Log        LogConfig        `yaml:"log"`
}

// TelegramConfig holds bot API settings
type TelegramConfig struct {
	Token         string `yaml:"token"          env:"TELEGRAM_BOT_TOKEN"`
	AdminIDs      string `yaml:"admin_ids"      env:"ADMIN_USER_IDS"`
	UpdateTimeout int    `yaml:"update_timeout" env:"TELEGRAM_UPDATE_TIMEOUT" env-default:"60"`
	Debug         bool   `yaml:"debug"          env:"TELEGRAM_DEBUG"          env-default:"false"`
}

// AdminUserIDs parses the comma-separated admin id list, skipping invalid entries
func (t TelegramConfig) AdminUserIDs() map[int64]bool {
	ids := make(map[int64]bool)
	for _, part := range strings.Split(t.AdminIDs, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids[id] = true
		}
	}
	return ids
}

// StorageConfig selects where learner profiles live
type StorageConfig struct {
	Backend      string `yaml:"backend"       env:"STORAGE_BACKEND" env-default:"sql"`
	DBType       string `yaml:"db_type"       env:"DB_TYPE"         env-default:"sqlite3"`
	DSN          string `yaml:"dsn"           env:"DATABASE_DSN"    env-default:"data/tutorbot.db"`
	AutoMigrate  bool   `yaml:"auto_migrate"  env:"DB_AUTO_MIGRATE" env-default:"true"`
	WorkbookPath string `yaml:"workbook_path" env:"WORKBOOK_PATH"   env-default:"data/users.xlsx"`
	BackupDir    string `yaml:"backup_dir"    env:"BACKUP_DIR"      env-default:"backups"`
}

// AIConfig selects the correction provider
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"groq"`
	APIKey   string `yaml:"api_key"  env:"AI_API_KEY"`
	Model    string `yaml:"model"    env:"AI_MODEL"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL"`
}

// CorrectionConfig controls the correction gateway
type CorrectionConfig struct {
	Timeout    time.Duration `yaml:"timeout"     env:"CORRECTION_TIMEOUT"     env-default:"15s"`
	MaxRetries int           `yaml:"max_retries" env:"CORRECTION_MAX_RETRIES" env-default:"2"`
	BaseDelay  time.Duration `yaml:"base_delay"  env:"CORRECTION_BASE_DELAY"  env-default:"500ms"`
}

// LockConfig selects the per-user lock
type LockConfig struct {
	Backend       string        `yaml:"backend"        env:"LOCK_BACKEND"   env-default:"memory"`
	RedisAddr     string        `yaml:"redis_addr"     env:"REDIS_ADDR"     env-default:"localhost:6379"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"       env:"REDIS_DB"       env-default:"0"`
	TTL           time.Duration `yaml:"ttl"            env:"LOCK_TTL"       env-default:"60s"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"   env:"LOCK_WAIT"      env-default:"45s"`
}

// LessonsConfig points at the lesson catalog. An empty path uses the built-in one.
type LessonsConfig struct {
	CatalogPath string `yaml:"catalog_path" env:"LESSON_CATALOG"`
}

// SchedulerConfig controls background jobs
type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled"        env:"ENABLE_SCHEDULER"        env-default:"true"`
	ReminderEvery time.Duration `yaml:"reminder_every" env:"REMINDER_EVERY"          env-default:"1h"`
	IdleAfter     time.Duration `yaml:"idle_after"     env:"REMINDER_IDLE_AFTER"     env-default:"24h"`
	StartHour     int           `yaml:"start_hour"     env:"NOTIFICATION_START_HOUR" env-default:"8"`
	EndHour       int           `yaml:"end_hour"       env:"NOTIFICATION_END_HOUR"   env-default:"20"`
	BackupEvery   time.Duration `yaml:"backup_every"   env:"BACKUP_EVERY"            env-default:"24h"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
