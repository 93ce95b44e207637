// Package capture turns a live microphone stream into fixed-size PCM16
// frames on a goroutine of its own, decoupled from whatever consumes them.
package capture

import (
	"log/slog"
	"sync"
)

const (
	DefaultSampleRate = 24000
	DefaultFrameSize  = 4800 // 200ms at 24kHz
)

// Source is a capture device. Read blocks until the next device buffer is
// available; the returned slice is only valid until the next Read.
type Source interface {
	Start() error
	Read() ([]int16, error)
	Stop() error
}

type Config struct {
	FrameSize int
	// Gate is consulted per frame; frames produced while it reports false
	// are dropped rather than buffered, so a stalled transport never grows
	// memory without bound.
	Gate   func() bool
	Emit   func(frame []int16)
	Logger *slog.Logger
}

// Pipeline owns the read loop between a Source and the frame consumer.
type Pipeline struct {
	src    Source
	framer *Framer
	cfg    Config
	log    *slog.Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Start acquires the device and begins emitting frames. On any acquisition
// failure no capture state is left behind.
func Start(src Source, cfg Config) (*Pipeline, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}

	if err := src.Start(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		src:    src,
		framer: NewFramer(cfg.FrameSize),
		cfg:    cfg,
		log:    cfg.Logger.With("component", "capture"),
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go p.loop()

	return p, nil
}

func (p *Pipeline) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		buf, err := p.src.Read()
		if err != nil {
			select {
			case <-p.done:
			default:
				p.log.Error("capture read failed, stopping", "error", err)
			}
			return
		}

		for _, frame := range p.framer.Push(buf) {
			if p.cfg.Gate != nil && !p.cfg.Gate() {
				continue
			}
			if p.cfg.Emit != nil {
				p.cfg.Emit(frame)
			}
		}
	}
}

// Stop releases the device and waits for the read loop to exit. Safe to
// call more than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		if err := p.src.Stop(); err != nil {
			p.log.Warn("capture device stop failed", "error", err)
		}
		p.wg.Wait()
	})
}
