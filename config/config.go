package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Script ScriptConfig `yaml:"script"`
	Speech SpeechConfig `yaml:"speech"`
	Image  ImageConfig  `yaml:"image"`
	Render RenderConfig `yaml:"render"`
	Paths  PathsConfig  `yaml:"paths"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	AuthUser string `yaml:"auth_user"`
}

type ScriptConfig struct {
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxAttempts       int     `yaml:"max_attempts"`
	MaxClarifications int     `yaml:"max_clarifications"`
	MinFrames         int     `yaml:"min_frames"`
	MaxFrames         int     `yaml:"max_frames"`
	DialogMaxChars    int     `yaml:"dialog_max_chars"`
	PromptWordLimit   int     `yaml:"prompt_word_limit"`
}

type SpeechConfig struct {
	Language string `yaml:"language"`
}

type ImageConfig struct {
	Provider string  `yaml:"provider"` // "diffusion" | "openai"
	Scale    float64 `yaml:"scale"`
	Steps    int     `yaml:"steps"`
}

type RenderConfig struct {
	FrameSize int `yaml:"frame_size"`
}

type PathsConfig struct {
	Temp       string `yaml:"temp"`
	FFmpegBin  string `yaml:"ffmpeg_bin"`
	FFprobeBin string `yaml:"ffprobe_bin"`
}

// Load reads the YAML config file and fills in defaults for anything unset.
// A missing file is not an error: the defaults describe a working local setup.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns the configuration used when no config.yaml is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.AuthUser == "" {
		c.Server.AuthUser = "KwisatzHaderach"
	}
	if c.Script.Model == "" {
		c.Script.Model = "gpt-4o-mini"
	}
	if c.Script.MaxAttempts == 0 {
		c.Script.MaxAttempts = 2
	}
	if c.Script.MaxClarifications == 0 {
		c.Script.MaxClarifications = 3
	}
	if c.Script.MinFrames == 0 {
		c.Script.MinFrames = 4
	}
	if c.Script.MaxFrames == 0 {
		c.Script.MaxFrames = 12
	}
	if c.Script.DialogMaxChars == 0 {
		c.Script.DialogMaxChars = 250
	}
	if c.Script.PromptWordLimit == 0 {
		c.Script.PromptWordLimit = 65
	}
	if c.Speech.Language == "" {
		c.Speech.Language = "en"
	}
	if c.Image.Provider == "" {
		c.Image.Provider = "diffusion"
	}
	if c.Image.Scale == 0 {
		c.Image.Scale = 7.5
	}
	if c.Image.Steps == 0 {
		c.Image.Steps = 50
	}
	if c.Render.FrameSize == 0 {
		c.Render.FrameSize = 512
	}
	if c.Paths.Temp == "" {
		c.Paths.Temp = "temp"
	}
	if c.Paths.FFmpegBin == "" {
		c.Paths.FFmpegBin = "ffmpeg"
	}
	if c.Paths.FFprobeBin == "" {
		c.Paths.FFprobeBin = "ffprobe"
	}
}
