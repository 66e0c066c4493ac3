package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewTriggerCmd создаёт команду запуска графа через webhook.
func NewTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var dataFile string

	cmd := &cobra.Command{
		Use:   "trigger WEBHOOK_ID",
		Short: "Trigger a graph through its webhook node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			body, err := resolveBody(data, dataFile)
			if err != nil {
				return err
			}

			trigger, err := client.TriggerWebhook(args[0], body)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Trigger accepted: %s", trigger.NodeID))
			out.Row([]string{"NODE_ID"}, []string{trigger.NodeID}, trigger)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "JSON payload for the webhook node")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Read JSON payload from file ('-' for stdin)")
	cmd.MarkFlagsMutuallyExclusive("data", "data-file")

	return cmd
}

// resolveBody собирает payload триггера из флагов и валидирует JSON.
func resolveBody(data, dataFile string) (json.RawMessage, error) {
	var raw []byte

	switch {
	case data != "":
		raw = []byte(data)
	case dataFile == "-":
		var err error
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	case dataFile != "":
		var err error
		raw, err = os.ReadFile(dataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dataFile, err)
		}
	default:
		return nil, nil
	}

	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return raw, nil
}
