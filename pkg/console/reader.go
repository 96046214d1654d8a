// Package console turns operator input into state machine signals.
package console

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/fsm"
)

// Raiser accepts signals; *fsm.Coordinator satisfies it.
type Raiser interface {
	Raise(sig fsm.Signal) bool
}

// Reader reads whitespace-separated command tokens and raises the matching
// signal for each one.
type Reader struct {
	in   io.Reader
	sink Raiser
}

// NewReader creates a Reader over in.
func NewReader(in io.Reader, sink Raiser) *Reader {
	return &Reader{in: in, sink: sink}
}

// Run consumes tokens until ctx ends or the input is exhausted. Unknown
// tokens are skipped, including ones too long to buffer. Reaching end of input is not an error: the machine
// keeps running with whatever it already has.
func (r *Reader) Run(ctx context.Context) error {
	tokens := make(chan string)
	errc := make(chan error, 1)

	go func() {
		var err error
		defer func() {
			errc <- err
			close(tokens)
		}()

		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 512), maxTokenSize)
		scanner.Split((&wordSplitter{max: maxTokenSize}).split)
		for scanner.Scan() {
			select {
			case tokens <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case tok, ok := <-tokens:
			if !ok {
				if err := <-errc; err != nil {
					return errors.Wrap(err, "failed to read commands")
				}
				slog.Info("command_input_closed")
				return nil
			}
			r.dispatch(tok)
		}
	}
}

func (r *Reader) dispatch(tok string) {
	sig, ok := fsm.ParseToken(tok)
	if !ok {
		slog.Debug("unknown_command", "token", tok)
		return
	}
	r.sink.Raise(sig)
}
