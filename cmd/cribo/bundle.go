package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinovyatkin/cribo/internal/bundler"
	"github.com/tinovyatkin/cribo/internal/ciboerr"
)

func newBundleCmd() *cobra.Command {
	var (
		roots           []string
		forceThirdParty string
		pythonVersion   string
		output          string
		configPath      string
	)

	cmd := &cobra.Command{
		Use:   "bundle <entry>",
		Short: "Bundle a first-party source tree into a single output file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := bundler.Options{
				EntryPath:     args[0],
				TargetVersion: pythonVersion,
			}
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

			result, err := bundler.Bundle(opts)
			if err != nil {
				return renderFatal(err)
			}
			for _, r := range result.Diagnostics {
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", yellow("warning"), r.Code, r.Message)
			}
			if ciboerr.HasCode(result.Diagnostics, ciboerr.DYN001) {
				os.Exit(1)
			}

			if output == "" || output == "-" {
				fmt.Print(result.Output)
				return nil
			}
			return os.WriteFile(output, []byte(result.Output), 0o644)
		},
	}

	cmd.Flags().StringSliceVar(&roots, "root", nil, "first-party search root (repeatable)")
	cmd.Flags().StringVar(&forceThirdParty, "force-third-party", "", "comma-separated dotted names to always classify as third-party")
	cmd.Flags().StringVar(&pythonVersion, "python-version", "3.12", "target stdlib version for classification")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: stdout)")
	cmd.Flags().StringVar(&configPath, "config", "cribo.yaml", "optional config file")
	return cmd
}

func renderFatal(err error) error {
	rep, ok := ciboerr.AsReport(err)
	if !ok {
		return err
	}
	return fmt.Errorf("%s %s: %s", cyan(rep.Phase), rep.Code, rep.Message)
}
