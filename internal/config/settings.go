package config

import (
	"os"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/bates"
	"github.com/Veraticus/bates-must-flow/internal/box"
	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/notify"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
	"github.com/Veraticus/bates-must-flow/internal/routing"
	"github.com/Veraticus/bates-must-flow/internal/sheets"
	"github.com/spf13/viper"
)

// Server holds webhook server settings.
type Server struct {
	Addr            string
	PrimaryKey      string
	SecondaryKey    string
	MaxInflight     int
	ShutdownTimeout time.Duration
	AllowUnsigned   bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	ec := engine.DefaultConfig()
	rc := routing.DefaultConfig()
	bc := box.DefaultConfig()

	v.SetDefault("pdf.region_bottom", ec.Region.Bottom)
	v.SetDefault("bates.pattern", ec.BatesPattern)
	v.SetDefault("bates.width", ec.Width)
	v.SetDefault("pipeline.max_file_size", ec.MaxFileSize)

	v.SetDefault("routing.enterprise_root_id", rc.RootID)
	v.SetDefault("routing.root_name", rc.RootName)
	v.SetDefault("routing.archive_root_format", rc.ArchiveRootFormat)
	v.SetDefault("routing.discovery_pattern", rc.DiscoveryPattern)

	v.SetDefault("box.base_url", bc.BaseURL)
	v.SetDefault("box.token_url", bc.TokenURL)
	v.SetDefault("box.requests_per_second", bc.RequestsPerSecond)
	v.SetDefault("box.timeout", bc.Timeout)
	v.SetDefault("box.max_attempts", bc.MaxAttempts)
	v.SetDefault("box.retry_delay", bc.RetryDelay)
	v.SetDefault("box.max_retry_delay", bc.MaxRetryDelay)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_inflight", 4)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	sc := sheets.DefaultConfig()
	v.SetDefault("sheets.spreadsheet_name", sc.SpreadsheetName)
	v.SetDefault("sheets.sheet_title", sc.SheetTitle)
	v.SetDefault("sheets.time_zone", sc.TimeZone)
	v.SetDefault("sheets.batch_size", sc.BatchSize)
	v.SetDefault("sheets.retry_attempts", sc.RetryAttempts)
	v.SetDefault("sheets.retry_delay", sc.RetryDelay)
	v.SetDefault("sheets.enable_formatting", sc.EnableFormatting)

	v.SetDefault("notify.file_link_format", ec.FileLinkFormat)
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadEngineConfig reads the coordinator settings and validates them.
func LoadEngineConfig(v *viper.Viper) (engine.Config, error) {
	cfg := engine.Config{
		BatesPattern:   v.GetString("bates.pattern"),
		FileLinkFormat: v.GetString("notify.file_link_format"),
		Region:         pdftext.Region{Bottom: v.GetFloat64("pdf.region_bottom")},
		MaxFileSize:    v.GetInt64("pipeline.max_file_size"),
		Width:          v.GetInt("bates.width"),
	}
	if cfg.BatesPattern == "" {
		cfg.BatesPattern = bates.DefaultPattern
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// LoadRoutingConfig reads the folder layout and validates it.
func LoadRoutingConfig(v *viper.Viper) (routing.Config, error) {
	cfg := routing.Config{
		RootID:            v.GetString("routing.enterprise_root_id"),
		RootName:          v.GetString("routing.root_name"),
		ArchiveRootFormat: v.GetString("routing.archive_root_format"),
		DiscoveryPattern:  v.GetString("routing.discovery_pattern"),
	}
	if err := cfg.Validate(); err != nil {
		return routing.Config{}, err
	}
	return cfg, nil
}

// LoadBoxConfig reads Box settings. It follows this precedence:
// 1. Viper configuration (from config file or BATES_ env vars)
// 2. Direct environment variables (BOX_*)
// 3. Default values
func LoadBoxConfig(v *viper.Viper) (box.Config, error) {
	cfg := box.DefaultConfig()
	cfg.BaseURL = v.GetString("box.base_url")
	cfg.TokenURL = v.GetString("box.token_url")
	cfg.RequestsPerSecond = v.GetFloat64("box.requests_per_second")
	cfg.Timeout = v.GetDuration("box.timeout")
	cfg.MaxAttempts = v.GetInt("box.max_attempts")
	cfg.RetryDelay = v.GetDuration("box.retry_delay")
	cfg.MaxRetryDelay = v.GetDuration("box.max_retry_delay")
	cfg.ClientID = firstNonEmpty(v.GetString("box.client_id"), os.Getenv("BOX_CLIENT_ID"))
	cfg.ClientSecret = firstNonEmpty(v.GetString("box.client_secret"), os.Getenv("BOX_CLIENT_SECRET"))
	cfg.EnterpriseID = firstNonEmpty(v.GetString("box.enterprise_id"), os.Getenv("BOX_ENTERPRISE_ID"))

	if err := cfg.Validate(); err != nil {
		return box.Config{}, err
	}
	return cfg, nil
}

// LoadNotifyConfig reads mail settings, falling back to GMAIL_* variables.
func LoadNotifyConfig(v *viper.Viper) notify.Config {
	cfg := notify.Config{
		Sender:             v.GetString("notify.sender"),
		FallbackRecipient:  v.GetString("notify.fallback_recipient"),
		ServiceAccountPath: ExpandPath(v.GetString("notify.service_account_path")),
		ClientID:           v.GetString("notify.client_id"),
		ClientSecret:       v.GetString("notify.client_secret"),
		RefreshToken:       v.GetString("notify.refresh_token"),
	}
	cfg.LoadFromEnv()
	cfg.ServiceAccountPath = ExpandPath(cfg.ServiceAccountPath)
	return cfg
}

// LoadSheetsConfig reads run log export settings, falling back to
// GOOGLE_SHEETS_* variables.
func LoadSheetsConfig(v *viper.Viper) (sheets.Config, error) {
	cfg := sheets.Config{
		ClientID:           v.GetString("sheets.client_id"),
		ClientSecret:       v.GetString("sheets.client_secret"),
		RefreshToken:       v.GetString("sheets.refresh_token"),
		ServiceAccountPath: v.GetString("sheets.service_account_path"),
		SpreadsheetID:      v.GetString("sheets.spreadsheet_id"),
		SpreadsheetName:    v.GetString("sheets.spreadsheet_name"),
		SheetTitle:         v.GetString("sheets.sheet_title"),
		TimeZone:           v.GetString("sheets.time_zone"),
		BatchSize:          v.GetInt("sheets.batch_size"),
		RetryAttempts:      v.GetInt("sheets.retry_attempts"),
		RetryDelay:         v.GetDuration("sheets.retry_delay"),
		EnableFormatting:   v.GetBool("sheets.enable_formatting"),
	}
	cfg.LoadFromEnv()
	cfg.ServiceAccountPath = ExpandPath(cfg.ServiceAccountPath)
	if err := cfg.Validate(); err != nil {
		return sheets.Config{}, common.ConfigError("sheets", "%v", err)
	}
	return cfg, nil
}

// LoadServer reads webhook server settings. Signature keys fall back to
// BOX_PRIMARY_KEY and BOX_SECONDARY_KEY.
func LoadServer(v *viper.Viper) (Server, error) {
	s := Server{
		Addr:            v.GetString("server.addr"),
		MaxInflight:     v.GetInt("server.max_inflight"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		AllowUnsigned:   v.GetBool("webhook.allow_unsigned"),
		PrimaryKey:      firstNonEmpty(v.GetString("webhook.primary_key"), os.Getenv("BOX_PRIMARY_KEY")),
		SecondaryKey:    firstNonEmpty(v.GetString("webhook.secondary_key"), os.Getenv("BOX_SECONDARY_KEY")),
	}
	if s.Addr == "" {
		return Server{}, common.ConfigError("server.addr", "must not be empty")
	}
	if s.MaxInflight <= 0 {
		return Server{}, common.ConfigError("server.max_inflight", "must be positive, got %d", s.MaxInflight)
	}
	if s.PrimaryKey == "" && s.SecondaryKey == "" && !s.AllowUnsigned {
		return Server{}, common.ConfigError("webhook.primary_key", "required unless webhook.allow_unsigned is set")
	}
	return s, nil
}

// DatabasePath returns the expanded audit database path.
func DatabasePath(v *viper.Viper) string {
	if p := v.GetString("database.path"); p != "" {
		return ExpandPath(p)
	}
	return DefaultDatabasePath()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
