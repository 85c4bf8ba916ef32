package config

import "errors"

type AppConfig struct {
	Port           int
	Endpoint       string
	Debug          bool
	DebugFPS       float64
	DebugMissing   float64
	Console        bool
	OutputDir      string
	RawLogEnabled  bool
	RawLogDir      string
	IngestLogEvery int
	IngestFallback bool
}

func Default() AppConfig {
	return AppConfig{
		Port:           8888,
		Endpoint:       "tcp://localhost:31001",
		DebugFPS:       30,
		DebugMissing:   0.1,
		OutputDir:      "output",
		RawLogDir:      "rawlog",
		IngestLogEvery: 100,
		IngestFallback: true,
	}
}

// Validate fills zero values with defaults and rejects settings that cannot work.
func (c *AppConfig) Validate() error {
	def := Default()
	if c.Port < 1 || c.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	if c.Endpoint == "" && !c.Debug {
		return errors.New("endpoint is required unless running the simulator")
	}
	if c.DebugMissing < 0 || c.DebugMissing > 1 {
		return errors.New("debug-missing must be within [0, 1]")
	}
	if c.DebugFPS <= 0 {
		c.DebugFPS = def.DebugFPS
	}
	if c.IngestLogEvery < 1 {
		c.IngestLogEvery = 1
	}
	if c.OutputDir == "" {
		c.OutputDir = def.OutputDir
	}
	if c.RawLogDir == "" {
		c.RawLogDir = def.RawLogDir
	}
	return nil
}
