package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// RunCheck checks the target once, and resolves the open incident if it is up.
// It exits with 0 only if the target is up and the result is recorded.
func (cmd *SelfmonCommand) RunCheck(ctx context.Context) (exitCode int) {
	m, backend, _, code := cmd.openOrReport(nil)
	if code != 0 {
		return code
	}
	defer backend.Close()

	r, err := m.ForceCheck(ctx)

	enc := json.NewEncoder(cmd.OutStream)
	if err := enc.Encode(r); err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: %s\n", err)
		return 1
	}

	if err != nil {
		fmt.Fprintf(cmd.ErrStream, "error: failed to record the result: %s\n", err)
		return 1
	}
	if !r.IsUp() {
		return 1
	}
	return 0
}
