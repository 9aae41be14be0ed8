package generate

import (
	"bufio"
	"context"
	"io"
	"strings"
)

const maxEventSize = 1024 * 1024

// readEvents reads server-sent events from r and hands each data payload to
// fn. It stops at "data: [DONE]", at EOF, or when ctx is cancelled.
func readEvents(ctx context.Context, r io.Reader, fn func(data []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			return nil
		}
		if err := fn([]byte(payload)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}
