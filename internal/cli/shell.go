package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/texttoaction/tta/internal/agent"
	"github.com/texttoaction/tta/internal/console"
	"github.com/texttoaction/tta/internal/sandbox"
	"github.com/texttoaction/tta/internal/version"
)

const (
	exitCommand = "bye"
	promptText  = "\nWhat would you like to do?\n> "
)

// Performer resolves one instruction. *agent.Agent implements it.
type Performer interface {
	Perform(ctx context.Context, instruction string, sink agent.Sink, streams sandbox.Streams) (agent.TurnResult, error)
}

// Shell is the interactive loop: one line per turn until "bye" or end of input.
type Shell struct {
	Performer Performer
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	// Interrupts cancels the running turn, or re-prompts when idle.
	Interrupts <-chan os.Signal
}

// Run prints the banner and serves turns until the user leaves or ctx ends.
func (s *Shell) Run(ctx context.Context) error {
	renderer := console.NewRenderer(s.Out)
	done := make(chan struct{})
	defer close(done)
	lines := readLines(s.In, done)

	fmt.Fprint(s.Out, banner())
	for {
		fmt.Fprint(s.Out, promptText)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.Interrupts:
			fmt.Fprintln(s.Out)
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.Out)
				return nil
			}
			if line == exitCommand {
				return nil
			}
			s.turn(ctx, line, renderer)
		}
	}
}

// turn runs one instruction. An interrupt cancels only this turn and a panic
// is reported without ending the loop.
func (s *Shell) turn(ctx context.Context, line string, renderer *console.Renderer) {
	turnCtx, cancel := context.WithCancel(ctx)
	finished := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-s.Interrupts:
			cancel()
		case <-finished:
		}
	}()
	defer func() {
		close(finished)
		wg.Wait()
		cancel()
	}()
	defer func() {
		if r := recover(); r != nil {
			kind, msg := describePanic(r)
			fmt.Fprintf(s.Out, "%s was raised: %s\n", kind, msg)
		}
	}()

	_, err := s.Performer.Perform(turnCtx, line, renderer, sandbox.Streams{Stdout: s.Out, Stderr: s.Err})
	if err != nil && ctx.Err() == nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(s.Out, "\nInterrupted.")
			return
		}
		fmt.Fprintf(s.Out, "%s was raised: %s\n", typeName(err), err)
	}
}

func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSuffix(scanner.Text(), "\r"):
			case <-done:
				return
			}
		}
	}()
	return lines
}

func describePanic(r any) (string, string) {
	switch v := r.(type) {
	case runtime.Error:
		return "RuntimeError", v.Error()
	case error:
		return typeName(v), v.Error()
	default:
		return "Panic", fmt.Sprint(v)
	}
}

func typeName(v any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", v), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func banner() string {
	return fmt.Sprintf(`
Welcome to TextToAction %s!

This application turns your natural language instructions into executable task using AI. It can:
- Fetch real-world data from the internet using public APIs (e.g., weather, news, etc.)
- Read and write files, list directories, and perform basic file operations
- Render images or play music (if the required libraries are available)
- Run code in a restricted sandbox for safety

Type your request in plain English and TextToAction will generate and execute the code for you.

Example tasks:
  1. print hello world
  2. what's the time?
  3. publish a 'hello world' message to 'mqtt/python' topic on 'broker.hivemq.com'
  4. save text to a file
  5. list files in the current directory
  6. play a .wav file (if supported)

Type '%s' to quit.
`, version.Short(), exitCommand)
}
