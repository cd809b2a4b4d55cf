package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/logger"
)

// errConfigExists is returned by InitConfig when the file is already there.
var errConfigExists = errors.New("settings file already exists")

// InitConfig writes the default settings to path. An existing file is kept
// unless overwrite is set.
func InitConfig(ctx context.Context, path string, overwrite bool) error {
	ctx = logger.WithName(ctx, "halo-monitor")

	if path == "" {
		path = config.DefaultConfigFilename
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", errConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("check settings file: %w", err)
		}
	}

	cfg := config.Default()
	if err := config.Save(path, cfg); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Default settings written", "path", path, "listen_address", cfg.ListenAddress)

	return nil
}
