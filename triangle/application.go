package main

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/triangle/frame"
	"github.com/vkngwrapper/triangle/gfx"
	"github.com/vkngwrapper/triangle/window"
)

// TriangleApplication wires the window, the Vulkan context and the frame
// loop together and forwards window events to the loop.
type TriangleApplication struct {
	config Config
	logger *slog.Logger

	window   *window.Window
	context  *gfx.Context
	renderer *gfx.Renderer
	loop     *frame.Loop
}

var _ window.Handler = (*TriangleApplication)(nil)

func (app *TriangleApplication) Run() error {
	err := app.initWindow()
	if err != nil {
		return err
	}
	defer app.cleanup()

	err = app.initVulkan()
	if err != nil {
		return err
	}

	return app.mainLoop()
}

func (app *TriangleApplication) initWindow() error {
	w, err := window.New(app.config.Title, app.config.Width, app.config.Height)
	if err != nil {
		return err
	}

	app.window = w
	return nil
}

func (app *TriangleApplication) initVulkan() error {
	driver, err := app.window.VulkanDriver()
	if err != nil {
		return err
	}

	app.context, err = gfx.NewContext(driver, app.window, gfx.Options{
		ApplicationName:  app.config.ApplicationName,
		EnableValidation: app.config.EnableValidation,
		Logger:           app.logger,
	})
	if err != nil {
		return err
	}

	vertexShader, err := fileSystem.ReadFile("shaders/vert.spv")
	if err != nil {
		return err
	}

	fragmentShader, err := fileSystem.ReadFile("shaders/frag.spv")
	if err != nil {
		return err
	}

	app.renderer, err = gfx.NewRenderer(app.context, gfx.ShaderCode{
		Vertex:   vertexShader,
		Fragment: fragmentShader,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create renderer")
	}

	app.loop = frame.NewLoop(app.renderer, frame.Options{
		ClearColor:    app.config.ClearColor,
		StatsInterval: app.config.StatsInterval,
		Logger:        app.logger,
	})
	return nil
}

func (app *TriangleApplication) mainLoop() error {
	err := window.NewEventLoop(app.window, app.logger).Run(app)
	closeErr := app.loop.Close()

	app.logger.Info("exiting", slog.Int("frames", app.loop.Stats().Total()))
	return errors.CombineErrors(err, closeErr)
}

func (app *TriangleApplication) Resumed(w *window.Window) error {
	return app.loop.Resumed(w)
}

func (app *TriangleApplication) WindowEvent(control frame.Control, event frame.Event) error {
	return app.loop.WindowEvent(control, event)
}

func (app *TriangleApplication) AboutToWait() {
	app.loop.AboutToWait()
}

func (app *TriangleApplication) cleanup() {
	if app.renderer != nil {
		err := app.renderer.Destroy()
		if err != nil {
			app.logger.Warn("failed to destroy renderer", slog.Any("error", err))
		}
	}

	if app.context != nil {
		app.context.Destroy()
	}

	if app.window != nil {
		app.window.Destroy()
	}
}
