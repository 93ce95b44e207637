package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/voicedeck/voicedeck/internal/audio"
	"github.com/voicedeck/voicedeck/internal/capture"
	"github.com/voicedeck/voicedeck/internal/deck"
	"github.com/voicedeck/voicedeck/internal/playback"
	"github.com/voicedeck/voicedeck/internal/presentation"
	"github.com/voicedeck/voicedeck/internal/session"
	"github.com/voicedeck/voicedeck/internal/transport"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "presentation server base URL")
	dialTimeout := flag.Duration("timeout", 10*time.Second, "websocket dial timeout")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := newLogger(*logLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	slides, err := presentation.NewClient(*serverURL).FetchSlides(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch the deck: %v\n", err)
		os.Exit(1)
	}

	view := presentation.NewView(slides, presentation.ViewCallbacks{
		OnSlideChange: renderSlide,
		OnVoiceState: func(state presentation.VoiceState) {
			fmt.Printf("\n[voice: %s]\n> ", state)
		},
	})

	wsURL := strings.Replace(*serverURL, "http", "ws", 1) + "/ws"

	machine := session.NewMachine(session.Config{
		Dial: func(ctx context.Context) (session.Transport, error) {
			ch, err := transport.Dial(ctx, wsURL, *dialTimeout, logger)
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		StartCapture: func(gate func() bool, emit func(frame []int16)) (session.Capture, error) {
			src, err := capture.NewDeviceSource(audio.SampleRate, audio.FrameSamples)
			if err != nil {
				return nil, err
			}
			return capture.Start(src, capture.Config{
				FrameSize: audio.FrameSamples,
				Gate:      gate,
				Emit:      emit,
				Logger:    logger,
			})
		},
		NewPlayer: func() (session.Player, error) {
			sink, err := playback.NewStreamSink(audio.SampleRate)
			if err != nil {
				return nil, err
			}
			return playback.NewScheduler(sink, audio.SampleRate, logger), nil
		},
		Bridge: view,
		OnTranscript: func(text string, isFinal bool, speaker string) {
			if isFinal {
				fmt.Printf("\n%s: %s\n> ", speaker, text)
			}
		},
		Logger: logger,
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		machine.Stop()
		fmt.Println("\nBye.")
		os.Exit(0)
	}()

	fmt.Printf("Loaded %d slides from %s\n", len(slides), *serverURL)
	if slide, index := view.Current(); view.Len() > 0 {
		renderSlide(slide, index)
	}
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)
		if len(fields) == 0 {
			fmt.Print("> ")
			continue
		}

		switch fields[0] {
		case "start":
			if err := machine.Start(context.Background()); err != nil {
				fmt.Printf("Could not start the session: %v\n", err)
			} else {
				fmt.Println("Session started. Speak, or navigate with next/prev/goto.")
			}
		case "stop":
			machine.Stop()
			fmt.Println("Session stopped.")
		case "next":
			machine.Navigate("next")
		case "prev", "previous":
			machine.Navigate("prev")
		case "goto":
			if len(fields) < 2 {
				fmt.Println("Usage: goto <slide number>")
				break
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("Usage: goto <slide number>")
				break
			}
			machine.GoToSlide(n)
		case "cancel":
			machine.CancelResponse()
		case "status":
			fmt.Printf("Phase: %s", machine.Phase())
			if id := machine.SessionID(); id != "" {
				fmt.Printf(", session %s", id)
			}
			if err := machine.LastError(); err != nil {
				fmt.Printf(", last error: %v", err)
			}
			fmt.Println()
		case "help":
			printHelp()
		case "quit", "exit":
			machine.Stop()
			fmt.Println("Bye.")
			return
		default:
			fmt.Printf("Unknown command %q, try help.\n", fields[0])
		}
		fmt.Print("> ")
	}

	machine.Stop()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func renderSlide(slide deck.Slide, _ int) {
	fmt.Printf("\n--- Slide %d: %s ---\n", slide.ID, slide.Title)
	for _, line := range slide.Content {
		fmt.Printf("  * %s\n", line)
	}
	fmt.Print("> ")
}

func printHelp() {
	fmt.Println(`Commands:
  start      begin the voice session
  stop       end the voice session
  next       go to the next slide
  prev       go to the previous slide
  goto N     jump to slide N
  cancel     interrupt the narrator
  status     show session state
  quit       exit`)
}
