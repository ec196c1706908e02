package routing

import (
	"fmt"
	"strings"

	"github.com/Veraticus/bates-must-flow/internal/common"
)

// Config names the folders the resolver walks.
type Config struct {
	// RootID is the folder whose children include the year roots.
	RootID string
	// RootName is the year root for the current year.
	RootName string
	// ArchiveRootFormat names the year root for other years; it receives the year.
	ArchiveRootFormat string
	// DiscoveryPattern matches the destination subfolder inside a case folder.
	DiscoveryPattern string
}

// DefaultConfig returns the folder layout used by the eDefender tree.
func DefaultConfig() Config {
	return Config{
		RootID:            "0",
		RootName:          "eDefender",
		ArchiveRootFormat: "eDefender_%d",
		DiscoveryPattern:  `(?i)^\s*discovery\s*$`,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.RootID == "" {
		return common.ConfigError("routing.enterprise_root_id", "must not be empty")
	}
	if c.RootName == "" {
		return common.ConfigError("routing.root_name", "must not be empty")
	}
	if strings.Count(c.ArchiveRootFormat, "%d") != 1 {
		return common.ConfigError("routing.archive_root_format", "must contain exactly one %%d, got %q", c.ArchiveRootFormat)
	}
	if _, err := common.CompileRegex(c.DiscoveryPattern, 0); err != nil {
		return fmt.Errorf("routing.discovery_pattern: %w", err)
	}
	return nil
}
