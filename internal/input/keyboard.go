package input

import (
	"io"
	"os"
	"sync"

	"github.com/san-kum/e3deploy/internal/dynamo"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const keyBuffer = 64

type KeyboardOptions struct {
	CmdStep       float64
	AngleStep     float64
	ElevationStep float64
	DistStep      float64
	Logger        *zap.Logger
}

type escState int

const (
	escNone escState = iota
	escStart
	escBracket
)

// Keyboard reads single keys from a terminal. One goroutine forwards bytes
// into a buffered channel and Poll drains it, so all state changes happen on
// the caller's goroutine.
type Keyboard struct {
	opts    KeyboardOptions
	keys    chan byte
	done    chan struct{}
	once    sync.Once
	esc     escState
	restore func() error
	log     *zap.Logger
}

// OpenKeyboard puts stdin into raw mode when it is a terminal and starts reading.
func OpenKeyboard(opts KeyboardOptions) (*Keyboard, error) {
	k := NewKeyboard(os.Stdin, opts)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			k.Close()
			return nil, err
		}
		k.restore = func() error { return term.Restore(fd, old) }
	} else {
		k.log.Warn("stdin is not a terminal, keys arrive line buffered")
	}
	return k, nil
}

// NewKeyboard reads keys from r. The reader goroutine exits when r returns
// an error or, after Close, when the next byte arrives.
func NewKeyboard(r io.Reader, opts KeyboardOptions) *Keyboard {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	k := &Keyboard{
		opts: opts,
		keys: make(chan byte, keyBuffer),
		done: make(chan struct{}),
		log:  log.Named("keyboard"),
	}
	go k.read(r)
	return k
}

func (k *Keyboard) read(r io.Reader) {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		select {
		case <-k.done:
			return
		default:
		}
		for _, b := range buf[:n] {
			select {
			case k.keys <- b:
			case <-k.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				k.log.Warn("Keyboard read failed", zap.Error(err))
			}
			return
		}
	}
}

func (k *Keyboard) Name() string { return "keyboard" }

func (k *Keyboard) Poll() Frame {
	f := Frame{Kind: Incremental}
	for {
		select {
		case b := <-k.keys:
			k.handle(&f, b)
		default:
			return f
		}
	}
}

func (k *Keyboard) handle(f *Frame, b byte) {
	switch k.esc {
	case escStart:
		if b == '[' {
			k.esc = escBracket
			return
		}
		k.esc = escNone
	case escBracket:
		k.esc = escNone
		k.arrow(f, b)
		return
	}

	step := k.opts.CmdStep
	switch b {
	case 0x1b:
		k.esc = escStart
	case 'w', 'W':
		f.Step.Vx += step
	case 's', 'S':
		f.Step.Vx -= step
	case 'j', 'J':
		f.Step.Vy += step
	case 'l', 'L':
		f.Step.Vy -= step
	case 'a', 'A':
		f.Step.Wz += step
	case 'd', 'D':
		f.Step.Wz -= step
	case 'u', 'U':
		f.Camera.Distance -= k.opts.DistStep
	case 'o', 'O':
		f.Camera.Distance += k.opts.DistStep
	case 'c', 'C':
		// Increments typed before the clear are dropped with it.
		f.Step = dynamo.Command{}
		f.Events = append(f.Events, EventClearCommand)
	case 'b', 'B':
		f.Events = append(f.Events, EventReset)
	case 'r', 'R':
		f.Events = append(f.Events, EventToggleCameraControl)
	case 'm', 'M':
		f.Events = append(f.Events, EventCycleMode)
	case 't', 'T':
		f.Events = append(f.Events, EventToggleTracking)
	case 'f', 'F':
		f.Events = append(f.Events, EventToggleForces)
	case 'k', 'K':
		f.Events = append(f.Events, EventToggleContacts)
	case 'q', 'Q', 0x03:
		f.Events = append(f.Events, EventQuit)
	}
}

func (k *Keyboard) arrow(f *Frame, b byte) {
	switch b {
	case 'A':
		f.Camera.Elevation += k.opts.ElevationStep
	case 'B':
		f.Camera.Elevation -= k.opts.ElevationStep
	case 'C':
		f.Camera.Angle += k.opts.AngleStep
	case 'D':
		f.Camera.Angle -= k.opts.AngleStep
	}
}

// Close stops forwarding keys and restores the terminal.
func (k *Keyboard) Close() error {
	var err error
	k.once.Do(func() {
		close(k.done)
		if k.restore != nil {
			err = k.restore()
		}
	})
	return err
}
