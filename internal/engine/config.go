package engine

import (
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/bates"
	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
)

// DefaultMaxFileSize is the largest upload that is scanned.
const DefaultMaxFileSize int64 = 64 << 20

// Config holds configuration options for the coordinator.
type Config struct {
	BatesPattern   string
	FileLinkFormat string
	Region         pdftext.Region
	MaxFileSize    int64
	Width          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BatesPattern:   bates.DefaultPattern,
		FileLinkFormat: "https://app.box.com/file/%s",
		Region:         pdftext.DefaultRegion(),
		MaxFileSize:    DefaultMaxFileSize,
		Width:          bates.DefaultWidth,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return common.ConfigError("pipeline.max_file_size", "must be positive, got %d", c.MaxFileSize)
	}
	if c.Width <= 0 {
		return common.ConfigError("bates.width", "must be positive, got %d", c.Width)
	}
	if err := c.Region.Validate(); err != nil {
		return common.ConfigError("pdf.region_bottom", "%v", err)
	}
	if strings.Count(c.FileLinkFormat, "%s") != 1 {
		return common.ConfigError("notify.file_link_format", "must contain exactly one %%s, got %q", c.FileLinkFormat)
	}
	if _, err := bates.NewScanner(c.BatesPattern); err != nil {
		return common.ConfigError("bates.pattern", "%v", err)
	}
	return nil
}
