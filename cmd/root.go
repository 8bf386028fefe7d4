package cmd

import (
	"os"
	"strings"

	"example.com/backstage/services/fleet/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fleet-service",
	Short: "Medical-waste fleet service",
	Long:  `Schedules deliveries and collections, tracks reusable waste containers and keeps the fleet's vehicles, drivers, incidents and maintenance records`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			config.SetConfigFile(cfgFile)
		}

		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return err
		}

		setupLogging(cfg)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./app.env)")
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsDevelopment() || cfg.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
