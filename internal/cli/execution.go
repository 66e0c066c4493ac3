package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewExecutionCmd создаёт группу команд для просмотра executions.
func NewExecutionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Inspect executions",
	}

	cmd.AddCommand(
		newExecutionShowCmd(clientFn, outputFn),
		newExecutionResultsCmd(clientFn, outputFn),
		newExecutionWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecutionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			execution, err := client.GetExecution(args[0])
			if err != nil {
				return err
			}

			out.Row(
				[]string{"ID", "FLOW_ID", "STATUS", "STARTED", "COMPLETED"},
				[]string{execution.ID, execution.FlowID, execution.Status, execution.StartedAt, execution.CompletedAt},
				execution,
			)
			return nil
		},
	}
}

func newExecutionResultsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "results EXECUTION_ID",
		Short: "List node results of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			results, err := client.ListResults(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE_ID", "RESULT", "CREATED"}
			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.NodeID, truncate(string(r.Result), 60), r.CreatedAt}
			}

			out.Print(headers, rows, results)
			return nil
		},
	}
}

func newExecutionWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "watch ID",
		Short: "Poll an execution until it reaches a terminal status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deadline := time.Now().Add(timeout)
			for {
				execution, err := client.GetExecution(args[0])
				if err != nil {
					return err
				}

				if execution.Status == "completed" || execution.Status == "error" {
					out.Success(fmt.Sprintf("Execution %s: %s", execution.ID, execution.Status))
					out.Row(
						[]string{"ID", "FLOW_ID", "STATUS", "STARTED", "COMPLETED"},
						[]string{execution.ID, execution.FlowID, execution.Status, execution.StartedAt, execution.CompletedAt},
						execution,
					)
					return nil
				}

				if time.Now().After(deadline) {
					return fmt.Errorf("execution %s still %s after %s", execution.ID, execution.Status, timeout)
				}
				time.Sleep(interval)
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this duration")

	return cmd
}

// truncate обрезает строку для табличного вывода.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
