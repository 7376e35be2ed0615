// Package procsrc is a reference Source Adapter Contract implementation
// backing a deferred value with an external process. The process itself
// is launched with the standard library's os/exec; its combined output
// is streamed through mitchellh/go-linereader, the same line-buffering
// helper Terraform's provisioners use for subprocess output.
package procsrc

import (
	"io"
	"os/exec"

	"github.com/mitchellh/go-linereader"

	"github.com/lionel-/deferred"
)

// Result is what a Run Deferred fulfils with when the process exits,
// regardless of exit code. A non-zero exit is reported through Result,
// not through rejection, so a caller can Then into inspecting it
// without first Catching.
type Result struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
}

// Run starts name with args and settles once it exits. Abort sends the
// process SIGKILL, best-effort; Run does not wait for the kill to be
// observed before the Deferred is marked cancelled.
func Run(b *deferred.Barrier, name string, args ...string) *deferred.Deferred {
	return deferred.NewDeferred(b, &producer{name: name, args: args})
}

type producer struct {
	name string
	args []string
	cmd  *exec.Cmd
}

func (p *producer) Start(s deferred.Settlement, reg deferred.Registrar) {
	p.cmd = exec.Command(p.name, p.args...)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()

	p.cmd.Stdout = stdoutW
	p.cmd.Stderr = stderrW

	if err := p.cmd.Start(); err != nil {
		s.Reject(deferred.WrapError(deferred.KindUser, "starting process", err))
		return
	}

	outLR := linereader.New(stdoutR)
	errLR := linereader.New(stderrR)

	var stdout, stderr []string

	done := make(chan struct{})

	go func() {
		outCh, errCh := outLR.Ch, errLR.Ch

		for outCh != nil || errCh != nil {
			select {
			case line, ok := <-outCh:
				if !ok {
					outCh = nil
					continue
				}

				stdout = append(stdout, line)
			case line, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}

				stderr = append(stderr, line)
			}
		}

		close(done)
	}()

	go func() {
		waitErr := p.cmd.Wait()

		stdoutW.Close()
		stderrW.Close()
		<-done

		result := Result{Stdout: stdout, Stderr: stderr}

		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			s.Fulfil(result)

			return
		}

		if waitErr != nil {
			s.Reject(deferred.WrapError(deferred.KindUser, "process wait failed", waitErr))
			return
		}

		s.Fulfil(result)
	}()
}

func (p *producer) Abort() {
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
