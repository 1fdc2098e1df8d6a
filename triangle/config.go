package main

import (
	"time"

	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/triangle/frame"
)

type Config struct {
	ApplicationName string

	Title  string
	Width  int
	Height int

	// EnableValidation asks for the Khronos validation layer. It is skipped
	// with a warning when the layer isn't installed.
	EnableValidation bool
	LogLevel         slog.Level

	ClearColor    frame.ClearColor
	StatsInterval time.Duration
}

func defaultConfig() Config {
	return Config{
		ApplicationName:  "Hello Triangle",
		Title:            "Vulkan",
		Width:            800,
		Height:           600,
		EnableValidation: true,
		LogLevel:         slog.LevelInfo,
		ClearColor:       frame.DefaultClearColor,
		StatsInterval:    frame.DefaultStatsInterval,
	}
}
