package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinovyatkin/cribo/internal/bundler"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
)

func newCheckCmd() *cobra.Command {
	var (
		roots           []string
		forceThirdParty string
		pythonVersion   string
		configPath      string
	)

	cmd := &cobra.Command{
		Use:   "check <entry>",
		Short: "Run discovery and cycle analysis without emitting; exit code only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := bundler.Options{EntryPath: args[0], TargetVersion: pythonVersion}
			if cfg, err := loadConfig(configPath); err == nil && cfg != nil {
				opts.FirstPartyRoots = cfg.Roots
				opts.ForceThirdParty = cfg.ForceThirdParty
			}
			if len(roots) > 0 {
				opts.FirstPartyRoots = roots
			}
			if forceThirdParty != "" {
				opts.ForceThirdParty = append(opts.ForceThirdParty, strings.Split(forceThirdParty, ",")...)
			}
			if len(opts.FirstPartyRoots) == 0 {
				opts.FirstPartyRoots = []string{"."}
			}

			result, err := bundler.Check(opts)
			if err != nil {
				if rep, ok := ciboerr.AsReport(err); ok {
					fmt.Fprintf(os.Stderr, "%s %s: %s\n", red("error"), rep.Code, rep.Message)
					os.Exit(1)
				}
				return err
			}
			for _, r := range result.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", yellow("warning"), r.Code, r.Message)
			}
			fmt.Printf("%s %d strongly connected component(s), %d diagnostic(s)\n", cyan("ok"), len(result.SCCs), len(result.Diagnostics))
			if ciboerr.HasCode(result.Diagnostics, ciboerr.DYN001) {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roots, "root", nil, "first-party search root (repeatable)")
	cmd.Flags().StringVar(&forceThirdParty, "force-third-party", "", "comma-separated dotted names to always classify as third-party")
	cmd.Flags().StringVar(&pythonVersion, "python-version", "3.12", "target stdlib version for classification")
	cmd.Flags().StringVar(&configPath, "config", "cribo.yaml", "optional config file")
	return cmd
}
