package viewer

import (
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/openkin/skelviz/internal/engine/window"
	"github.com/openkin/skelviz/internal/playback"
)

// Exec runs the interactive loop until the window closes. Everything, the
// event pump, playback ticks and drawing, happens on this goroutine.
func (v *Viewer) Exec(win *window.Window) error {
	v.control.SetLoopActive(true)
	defer v.control.SetLoopActive(false)
	v.surface.RequestRedraw()

	interval := time.Duration(float64(time.Second) / v.cfg.Playback.FPS)
	lastTick := time.Now()
	var leftDown, middleDown bool

	for !v.stop {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				v.stop = true

			case *sdl.WindowEvent:
				if e.Event == sdl.WINDOWEVENT_RESIZED || e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
					v.surface.Resize(int(e.Data1), int(e.Data2))
				}

			case *sdl.MouseButtonEvent:
				pressed := e.State == sdl.PRESSED
				switch e.Button {
				case sdl.BUTTON_LEFT:
					leftDown = pressed
				case sdl.BUTTON_MIDDLE:
					middleDown = pressed
				}

			case *sdl.MouseMotionEvent:
				if leftDown {
					v.cam.HandleDrag(float64(e.XRel), float64(e.YRel))
					v.surface.RequestRedraw()
				} else if middleDown {
					v.cam.HandlePan(float64(e.XRel), float64(e.YRel))
					v.surface.RequestRedraw()
				}

			case *sdl.MouseWheelEvent:
				v.cam.HandleZoom(float64(e.Y))
				v.surface.RequestRedraw()

			case *sdl.KeyboardEvent:
				if e.Type == sdl.KEYDOWN {
					v.handleKey(e.Keysym.Sym)
				}
			}
		}

		if v.control.Mode() == playback.ModePlaying && time.Since(lastTick) >= interval {
			lastTick = time.Now()
			if err := v.advance(); err != nil {
				v.log.Error("playback stopped", zap.Error(err))
				v.control.Pause()
			}
		}

		if v.surface.NeedsRedraw() {
			v.surface.Draw(v.sync)
			win.SwapBuffers()
		}
		sdl.Delay(1)
	}
	return nil
}

func (v *Viewer) handleKey(key sdl.Keycode) {
	switch key {
	case sdl.K_ESCAPE:
		v.stop = true
	case sdl.K_SPACE:
		v.TogglePlay()
	case sdl.K_LEFT:
		if err := v.SetFrame(v.control.Cursor() - 1); err != nil {
			v.log.Error("frame step failed", zap.Error(err))
		}
	case sdl.K_RIGHT:
		if err := v.SetFrame(v.control.Cursor() + 1); err != nil {
			v.log.Error("frame step failed", zap.Error(err))
		}
	case sdl.K_0:
		if err := v.ResetQ(); err != nil {
			v.log.Error("pose reset failed", zap.Error(err))
		}
	}
}

// Stop ends the Exec loop at its next iteration.
func (v *Viewer) Stop() { v.stop = true }
