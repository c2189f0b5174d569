package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tinovyatkin/cribo/internal/bundler"
)

func newGraphCmd() *cobra.Command {
	var (
		roots           []string
		forceThirdParty string
		pythonVersion   string
		configPath      string
	)

	cmd := &cobra.Command{
		Use:   "graph <entry>",
		Short: "Print the discovered module graph in dot-like text",
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

			names, edges, err := bundler.Graph(opts)
			if err != nil {
				return renderFatal(err)
			}

			fmt.Println("digraph cribo {")
			for _, n := range names {
				fmt.Printf("  %q;\n", n)
			}
			for _, e := range edges {
				fmt.Printf("  %q -> %q [kind=%s, disposition=%s];\n", e.From, e.To, e.Kind, e.Disposition)
			}
			fmt.Println("}")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roots, "root", nil, "first-party search root (repeatable)")
	cmd.Flags().StringVar(&forceThirdParty, "force-third-party", "", "comma-separated dotted names to always classify as third-party")
	cmd.Flags().StringVar(&pythonVersion, "python-version", "3.12", "target stdlib version for classification")
	cmd.Flags().StringVar(&configPath, "config", "cribo.yaml", "optional config file")
	return cmd
}
