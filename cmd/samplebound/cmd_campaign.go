package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yasi-python/samplebound/pkg/decision"
	"github.com/yasi-python/samplebound/pkg/storage"
)

func newCampaignCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage test campaigns",
		Long: `Manage test campaigns stored in the local database.

A campaign tracks tests drawn without replacement from a population of fixed
size and is re-evaluated after every recorded outcome.`,
	}
	cmd.AddCommand(newCampaignAddCommand(opts))
	cmd.AddCommand(newCampaignDrawCommand(opts))
	cmd.AddCommand(newCampaignImportCommand(opts))
	cmd.AddCommand(newCampaignStatusCommand(opts))
	cmd.AddCommand(newCampaignListCommand(opts))
	return cmd
}

func newCampaignAddCommand(opts *rootOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add ID POPULATION",
		Short: "Create a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			population, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Errorf("population %q is not an integer", args[1])
			}
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			c, err := m.CreateCampaign(args[0], name, population)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (population %d)\n", c.ID, c.Population)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	return cmd
}

func newCampaignDrawCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "draw ID pass|fail",
		Short: "Record one test outcome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			c, d, err := m.ImportText(args[0], args[1])
			if err != nil {
				return err
			}
			printStatus(cmd, c, d)
			return nil
		},
	}
}

func newCampaignImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import ID SOURCE",
		Short: "Record outcomes from a file or URL",
		Long: `Record test outcomes read from a local file or an http(s) URL.

One outcome per token: pass, ok, success, true, 1 or + for a success and
fail, failure, false, 0, - or x for a failure. A # starts a comment.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			c, d, err := m.Import(contextOf(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			printStatus(cmd, c, d)
			return nil
		},
	}
}

func newCampaignStatusCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status ID",
		Short: "Evaluate a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			c, err := m.Campaign(args[0])
			if err != nil {
				return err
			}
			d, err := m.Evaluate(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"campaign": c, "decision": d})
			}
			printStatus(cmd, c, d)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCampaignListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, closeDB, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer closeDB()
			cs, err := m.ListCampaigns()
			if err != nil {
				return err
			}
			for _, c := range cs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %d/%d tested, %d ok, lower_bound=%.4f\n",
					c.ID, c.Status, c.Draws, c.Population, c.Successes, c.LowerBound)
			}
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, c *storage.Campaign, d decision.Decision) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d tested, %d ok\n", c.ID, c.Draws, c.Population, c.Successes)
	fmt.Fprintf(cmd.OutOrStdout(), "action=%s reason=%s lower_bound=%.6f wilson_lb=%.6f posterior=%.6f",
		d.Action, d.Reason, d.LowerBound, d.WilsonLB, d.Posterior)
	if d.RemainingTests > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " remaining_tests=%d", d.RemainingTests)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
