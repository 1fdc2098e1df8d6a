package window

import (
	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/triangle/frame"
)

// idleWait bounds how long a minimized window blocks waiting for events.
const idleWait = 100

// Handler receives the event loop's callbacks, in the order SDL delivers
// events. An error from Resumed or WindowEvent stops the loop.
type Handler interface {
	Resumed(window *Window) error
	WindowEvent(control frame.Control, event frame.Event) error
	AboutToWait()
}

// EventLoop pumps SDL events for one window. It must run on the main OS
// thread.
type EventLoop struct {
	window *Window
	logger *slog.Logger
	exit   bool
}

var _ frame.Control = (*EventLoop)(nil)

func NewEventLoop(window *Window, logger *slog.Logger) *EventLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLoop{window: window, logger: logger}
}

// Exit stops the loop once the current event has been handled.
func (l *EventLoop) Exit() {
	l.exit = true
}

func (l *EventLoop) Run(handler Handler) error {
	err := handler.Resumed(l.window)
	if err != nil {
		return err
	}

	for !l.exit {
		for event := sdl.PollEvent(); event != nil && !l.exit; event = sdl.PollEvent() {
			err = l.dispatch(handler, event)
			if err != nil {
				return err
			}
		}
		if l.exit {
			break
		}

		handler.AboutToWait()

		if l.window.takeRedrawRequest() {
			err = handler.WindowEvent(l, frame.RedrawRequested)
			if err != nil {
				return err
			}
		}

		// Nothing gets drawn while minimized, so sleep until something
		// happens instead of spinning.
		if l.window.minimized() {
			if event := sdl.WaitEventTimeout(idleWait); event != nil {
				err = l.dispatch(handler, event)
				if err != nil {
					return err
				}
			}
		}
	}

	l.logger.Debug("event loop exited")
	return nil
}

func (l *EventLoop) dispatch(handler Handler, event sdl.Event) error {
	translated, ok := translate(event)
	if !ok {
		return nil
	}
	return handler.WindowEvent(l, translated)
}

// translate maps the SDL events the frame loop cares about.
func translate(event sdl.Event) (frame.Event, bool) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return frame.CloseRequested, true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			return frame.CloseRequested, true
		case sdl.WINDOWEVENT_RESIZED,
			sdl.WINDOWEVENT_SIZE_CHANGED,
			sdl.WINDOWEVENT_MINIMIZED,
			sdl.WINDOWEVENT_MAXIMIZED,
			sdl.WINDOWEVENT_RESTORED:
			return frame.Resized, true
		case sdl.WINDOWEVENT_EXPOSED:
			return frame.RedrawRequested, true
		}
	}
	return 0, false
}
