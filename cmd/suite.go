package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"faultcheck/internal/config"
)

var suiteCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every scenario in a suite file",
	Example: `  faultcheck run --suite checks.yaml
  faultcheck run --suite checks.yaml --out results`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base, err := cfg.BaseTarget()
		if err != nil {
			return configError(err)
		}

		path := v.GetString("suite")
		if path == "" {
			return configError(fmt.Errorf("%w: --suite is required", config.ErrInvalidConfig))
		}
		suite, err := config.LoadSuite(path)
		if err != nil {
			return configError(err)
		}
		scenarios, overall, err := suite.Build(base)
		if err != nil {
			return configError(err)
		}

		// --pace on the command line wins over the suite file.
		pace := cfg.Pace
		if !cmd.Flags().Changed("pace") {
			pace = suite.PaceOr(cfg.Pace)
		}
		return execute(cmd.Context(), cfg, plan{Scenarios: scenarios, Overall: overall, Pace: pace})
	},
}

func init() {
	suiteCmd.Flags().StringP("suite", "s", "", "Suite file (YAML)")
}
