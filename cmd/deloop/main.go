package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"

	"github.com/valerio/go-deloop/deloop/controller"
	"github.com/valerio/go-deloop/deloop/counter"
	"github.com/valerio/go-deloop/deloop/engine"
	"github.com/valerio/go-deloop/deloop/host"
	"github.com/valerio/go-deloop/deloop/host/headless"
	hostsdl2 "github.com/valerio/go-deloop/deloop/host/sdl2"
	"github.com/valerio/go-deloop/deloop/ioconfig"
	"github.com/valerio/go-deloop/deloop/track"
)

const statusFrameTime = time.Second / 30

func main() {
	app := cli.NewApp()
	app.Name = "deloop"
	app.Description = "A four-track live looping engine"
	app.Usage = "deloop [options]"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "open-repl", Usage: "reserved; not implemented"},
		cli.BoolFlag{Name: "sdl2", Usage: "use real SDL2 audio I/O and RtMidi input"},
		cli.BoolFlag{Name: "headless", Usage: "run without real audio hardware (default)"},
		cli.StringFlag{Name: "io-config", Usage: "path to the persisted IO selection document", Value: "deloop_io.json"},
		cli.StringFlag{Name: "audio-out", Usage: "sdl2 output device name (empty selects the platform default)"},
		cli.StringFlag{Name: "audio-in", Usage: "sdl2 input device name (empty selects the platform default)"},
		cli.StringFlag{Name: "midi-port", Usage: "sdl2 mode: RtMidi input port name"},
		cli.Float64Flag{Name: "headless-sample-rate", Usage: "headless mode: simulated sample rate", Value: 48000},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		slog.Error("deloop exited with error", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("open-repl") {
		slog.Warn("--open-repl is reserved and not implemented")
	}

	h, pump, err := newHost(c)
	if err != nil {
		return err
	}
	defer h.Close()

	commands := make(chan engine.Command, 8)
	responses := make(chan engine.Response, 8)
	info := make(chan engine.Info, 256)

	mgr := engine.NewManager(h.SampleRate(), commands, responses, info)
	ctrl := controller.New(commands, responses, info, h)

	ioConfigPath := c.String("io-config")
	if _, err := ioconfig.Load(ioConfigPath); err != nil {
		slog.Warn("failed to load io config", "path", ioConfigPath, "error", err)
	}

	tick := func(scope host.ProcessScope) {
		mgr.Tick(scope.NFrames, scope.InputFL, scope.InputFR, scope.OutputFL, scope.OutputFR, scope.MIDI)
	}
	if pump != nil {
		if err := h.Run(tick); err != nil {
			return fmt.Errorf("starting host: %w", err)
		}
		go pump()
	} else {
		// host/sdl2's Run blocks until Close, so it runs beside the
		// status view.
		go func() {
			if err := h.Run(tick); err != nil {
				slog.Error("host stopped", "error", err)
			}
		}()
	}

	view, err := newStatusView(ctrl)
	if err != nil {
		return err
	}
	return view.Run()
}

// newHost selects the Host implementation from --sdl2/--headless
// (headless is the default). For headless it also returns a pump
// function the caller should run in a goroutine to keep ticks
// flowing with silent input, since nothing else drives the callback
// without real hardware.
func newHost(c *cli.Context) (host.Host, func(), error) {
	if c.Bool("sdl2") {
		h, err := hostsdl2.New(c.String("audio-out"), c.String("audio-in"), c.String("midi-port"))
		if err != nil {
			return nil, nil, fmt.Errorf("opening sdl2 host: %w", err)
		}
		return h, nil, nil
	}

	sampleRate := uint64(c.Float64("headless-sample-rate"))
	if sampleRate == 0 {
		sampleRate = 48000
	}
	h := headless.New(sampleRate)

	const bufFrames = 512
	silence := make([]float32, bufFrames)
	pump := func() {
		period := time.Duration(float64(bufFrames) / float64(sampleRate) * float64(time.Second))
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for range ticker.C {
			h.ProcessTick(silence, silence)
		}
	}
	return h, pump, nil
}

// statusView is a minimal read-only terminal strip: four track
// states, the focused track, and per-tick processing latency, driven
// purely by Controller.GetTrackUpdates. Grounded on the teacher's
// TerminalRenderer run-loop shape (root main.go), not its rendering.
type statusView struct {
	screen  tcell.Screen
	ctrl    *controller.Controller
	running bool

	trackLines [counter.NumTracks]string
	focused    counter.TrackID
	latency    time.Duration
}

func newStatusView(ctrl *controller.Controller) (*statusView, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %v", err)
	}

	v := &statusView{screen: screen, ctrl: ctrl, running: true}
	for i := range v.trackLines {
		v.trackLines[i] = "idle"
	}
	return v, nil
}

func (v *statusView) Run() error {
	defer func() {
		slog.Info("closing status view")
		v.screen.Fini()
	}()

	v.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	v.screen.Clear()

	go v.handleInput()

	ticker := time.NewTicker(statusFrameTime)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for v.running {
		select {
		case <-ticker.C:
			v.consumeUpdates()
			v.render()
			v.screen.Show()
		case <-signals:
			v.running = false
			slog.Info("received signal to stop")
			return nil
		}
	}
	return nil
}

func (v *statusView) handleInput() {
	for v.running {
		ev := v.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			switch ev.Key() {
			case tcell.KeyEscape:
				v.running = false
				return
			case tcell.KeyRune:
				if ev.Rune() == ' ' {
					if err := v.ctrl.AdvanceTrackState(context.Background()); err != nil {
						slog.Error("advance track state", "error", err)
					}
				}
			}
		case *tcell.EventResize:
			v.screen.Sync()
		}
	}
}

func (v *statusView) consumeUpdates() {
	for _, update := range v.ctrl.GetTrackUpdates() {
		switch update.Kind {
		case engine.InfoStatusUpdate, engine.InfoWaveformUpdate:
			v.trackLines[update.TrackID] = trackKindLabel(update.Status)
		case engine.InfoFocusChanged:
			v.focused = update.TrackID
		case engine.InfoProcessingLatency:
			v.latency = update.Latency
		}
	}
}

func trackKindLabel(status track.Status) string {
	switch status.State.Kind {
	case track.Idle:
		return "idle"
	case track.RecordingQueued:
		return "rec-queued"
	case track.Recording:
		return "REC"
	case track.OverdubbingQueued:
		return "dub-queued"
	case track.Overdubbing:
		return "DUB"
	case track.PlayingQueued:
		return "play-queued"
	case track.Playing:
		return "play"
	case track.Paused:
		return "paused"
	default:
		return "?"
	}
}

func (v *statusView) render() {
	v.screen.Clear()
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)

	for i, id := range counter.AllTracks {
		line := fmt.Sprintf("%s: %-12s", id, v.trackLines[i])
		if id == v.focused {
			line = "*" + line
		} else {
			line = " " + line
		}
		for x, r := range line {
			v.screen.SetContent(x, i, r, nil, style)
		}
	}

	latencyLine := fmt.Sprintf("latency: %s", v.latency)
	for x, r := range latencyLine {
		v.screen.SetContent(x, counter.NumTracks+1, r, nil, style)
	}
}
