package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/hammersbald/pkg/hammersbald"
	"github.com/cuemby/hammersbald/pkg/types"
)

// FileConfig is the on-disk YAML shape for -c/--config. It embeds the
// same types.Config the engine's host-supplied options are modeled on,
// plus the tool's own logging/metrics flags. Command-line flags always
// take precedence over a loaded file; flags only fall back to the
// file's values when left at their zero default.
type FileConfig struct {
	types.Config `yaml:",inline"`

	MetricsAddr string `yaml:"metricsAddr"`
	LogLevel    string `yaml:"logLevel"`
	LogJSON     bool   `yaml:"logJSON"`
}

func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// resolveOptions merges the optional FileConfig under the flags already
// read from the command, producing the CreateOptions the engine expects.
func resolveOptions(cachePages, fillTarget, queueDepth int, fc *FileConfig) hammersbald.CreateOptions {
	if fc != nil {
		if cachePages == 0 {
			cachePages = fc.CachePages
		}
		if fillTarget == 0 {
			fillTarget = fc.FillTarget
		}
		if queueDepth == 0 {
			queueDepth = fc.WriterQueueDepth
		}
	}
	return hammersbald.CreateOptions{
		CachePages:       cachePages,
		FillTarget:       uint32(fillTarget),
		WriterQueueDepth: queueDepth,
	}
}

// resolveDataDir picks the data directory flag over the config file's.
func resolveDataDir(flagDir string, fc *FileConfig) (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	if fc != nil && fc.Path != "" {
		return fc.Path, nil
	}
	return "", fmt.Errorf("no data directory given: pass --data-dir or set path in --config")
}
