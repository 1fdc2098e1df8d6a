package main

import (
	"embed"
	"log"
	"os"
	"runtime"

	"golang.org/x/exp/slog"
)

//go:generate glslc shaders/shader.vert -o shaders/vert.spv
//go:generate glslc shaders/shader.frag -o shaders/frag.spv

//go:embed shaders
var fileSystem embed.FS

func main() {
	runtime.LockOSThread()

	config := defaultConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel}))

	app := &TriangleApplication{
		config: config,
		logger: logger,
	}

	err := app.Run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
