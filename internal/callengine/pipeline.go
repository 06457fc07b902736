/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package callengine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// pipeline manages one GStreamer playback process for a chat. A natural
// process exit (the media ran out) fires onExit; an exit caused by Stop does
// not, so teardown never looks like a stream end.
type pipeline struct {
	bin    string
	label  string
	logger zerolog.Logger
	onExit func()

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	stopped bool
}

func newPipeline(bin, label string, logger zerolog.Logger, onExit func()) *pipeline {
	return &pipeline{bin: bin, label: label, logger: logger, onExit: onExit}
}

// start launches the gst pipeline with the provided launch string.
func (p *pipeline) start(ctx context.Context, launch string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.done != nil {
		select {
		case <-p.done:
			// Previous process has exited, ok to start new one
		default:
			return fmt.Errorf("pipeline already running")
		}
	}

	// Use shell to properly parse the GStreamer pipeline string
	shellCmd := fmt.Sprintf("%s -e %s", p.bin, launch)
	cmd := exec.CommandContext(ctx, "sh", "-c", shellCmd)
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}

	p.cmd = cmd
	p.done = make(chan struct{})
	p.stopped = false

	go func(done chan struct{}, c *exec.Cmd) {
		err := c.Wait()
		close(done)

		p.mu.Lock()
		natural := !p.stopped
		p.mu.Unlock()

		if err != nil {
			p.logger.Debug().Err(err).Str("chat", p.label).Msg("gstreamer pipeline exited")
		} else {
			p.logger.Info().Str("chat", p.label).Msg("gstreamer pipeline finished")
		}

		if natural && p.onExit != nil {
			p.onExit()
		}
	}(p.done, cmd)

	return nil
}

// pause suspends the playback process.
func (p *pipeline) pause() error {
	return p.signal(syscall.SIGSTOP)
}

// resume continues a suspended playback process.
func (p *pipeline) resume() error {
	return p.signal(syscall.SIGCONT)
}

func (p *pipeline) signal(sig syscall.Signal) error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || done == nil || cmd.Process == nil {
		return fmt.Errorf("pipeline not running")
	}
	select {
	case <-done:
		return fmt.Errorf("pipeline not running")
	default:
	}
	return cmd.Process.Signal(sig)
}

// running reports whether the playback process is still alive.
func (p *pipeline) running() bool {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// stop terminates the running pipeline without firing the exit callback.
func (p *pipeline) stop() error {
	p.mu.Lock()
	cmd := p.cmd
	done := p.done
	p.stopped = true
	p.mu.Unlock()

	if cmd == nil || done == nil {
		return nil
	}

	// Check if already exited
	select {
	case <-done:
		return nil
	default:
	}

	// A suspended process cannot act on the interrupt; wake it first.
	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGCONT)
		_ = cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-time.After(5 * time.Second):
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	case <-done:
		// Process exited normally
	}

	return nil
}
