package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду status.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show bridge state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.BridgeStatus()
			if err != nil {
				return err
			}

			headers := []string{"STATE", "LOCATION", "SHARED_SPACE", "USER", "CONNECTIONS", "PENDING", "INSTANCE"}
			rows := [][]string{{
				ColorState(State(*status)),
				status.Location,
				status.SharedSpace,
				status.Username,
				strconv.Itoa(status.OpenConnections),
				strconv.Itoa(status.PendingAttempts),
				status.InstanceID,
			}}

			out.Print(headers, rows, status)
			return nil
		},
	}

	cmd.AddCommand(newStatusTasksCmd(clientFn, outputFn))

	return cmd
}

func newStatusTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks received but not finished",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.UnfinishedTasks(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "STATUS", "METHOD", "URL", "RECEIVED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.TaskID, t.Status, t.Method, t.URL, t.ReceivedAt}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}
