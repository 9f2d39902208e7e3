package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	staterender "github.com/bnema/odfops/internal/adapters/render/state"
	"github.com/bnema/odfops/internal/adapters/transport/wire"
	"github.com/bnema/odfops/internal/ops"
)

const maxOperationLine = 4 << 20

// readOperations decodes a JSON-lines operation log. Blank lines are skipped;
// "-" reads stdin.
func readOperations(cmd *cobra.Command, path string, factory *ops.Factory) ([]ops.Operation, error) {
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open operations file: %w", err)
		}
		defer file.Close()
		in = file
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOperationLine)

	var operations []ops.Operation
	for line := 1; scanner.Scan(); line++ {
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}

		op, err := factory.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		operations = append(operations, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read operations file: %w", err)
	}

	return operations, nil
}

func (a *app) writeSnapshot(cmd *cobra.Command, snapshot staterender.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(wire.StateResponse{
			SessionID: snapshot.SessionID,
			Head:      snapshot.Head,
			Digest:    snapshot.Digest,
			State:     snapshot.State,
		})
	}

	rendered, err := a.stateRenderer(snapshot, staterender.RenderOptions{MaxTextWidth: 72})
	if err != nil {
		return fmt.Errorf("render state: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
