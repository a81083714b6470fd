package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var (
	cfgFile  string
	apiURL   string
	dataDir  string
	logLevel string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Folio manages a portfolio site from the command line",
	Long: `Folio is the admin client for a portfolio site backend: log in, recover a
lost password with security questions, and manage projects, categories,
reviews and site content. "folio serve" runs a local development backend.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./folio.yaml or <user config dir>/folio/folio.yaml)")
	pf.StringVar(&apiURL, "api-url", "", "Backend API origin, e.g. http://localhost:8080/api (env FOLIO_API_URL)")
	pf.StringVar(&dataDir, "data-dir", "", "Directory for the local session database")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig merges file, environment and flags, then installs the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	v := config.New(cfgFile)
	pf := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"api_url":   "api-url",
		"data_dir":  "data-dir",
		"log.level": "log-level",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			return err
		}
	}
	c, err := config.Load(v)
	if err != nil {
		return err
	}
	l, err := c.Log.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, logger = c, l
	slog.SetDefault(logger)
	return nil
}
