package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

type ModelConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type Config struct {
	Listen   string      `yaml:"listen"`
	LogLevel string      `yaml:"log_level"`
	DBPath   string      `yaml:"db_path"`
	History  int         `yaml:"history"`
	Model    ModelConfig `yaml:"model"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	conf := Config{
		Listen:   ":8080",
		LogLevel: "info",
		DBPath:   "bookmarks.db",
		History:  50,
	}
	if err := yaml.Unmarshal(file, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &conf, nil
}

func (c *Config) level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
