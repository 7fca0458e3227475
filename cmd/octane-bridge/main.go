// Octane Bridge — связывает CI хост с ALM Octane.
//
// Использование:
//
//	octane-bridge [--config FILE] <command> [flags]
//
// Команды:
//
//	run           Запустить bridge (polling loop, relay задач, API статуса)
//	status        Показать состояние работающего bridge
//	events        Печатать события о завершённых задачах из RabbitMQ
//	set-password  Сохранить пароль Octane в OS keyring
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tyetech/hpe-application-automation-tools-plugin/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var configPath string
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "octane-bridge",
		Short:         "Octane CI bridge — polls ALM Octane for tasks and relays them to the local CI host",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8090", "Status API URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	configFn := func() string { return configPath }

	rootCmd.AddCommand(
		newRunCmd(configFn),
		cli.NewStatusCmd(clientFn, outputFn),
		newEventsCmd(configFn, outputFn),
		newSetPasswordCmd(configFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(false).Error(err.Error())
		os.Exit(1)
	}
}
