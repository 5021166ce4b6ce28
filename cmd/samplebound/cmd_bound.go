package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yasi-python/samplebound/pkg/stats"
)

func parseCounts(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, errors.Errorf("argument %d: %q is not an integer", i+1, a)
		}
		out[i] = v
	}
	return out, nil
}

// floatFlag returns the flag value when set and the config value otherwise.
func floatFlag(cmd *cobra.Command, name string, flagVal, cfgVal float64) float64 {
	if cmd.Flags().Changed(name) {
		return flagVal
	}
	return cfgVal
}

func newBoundCommand(opts *rootOptions) *cobra.Command {
	var confidence, accuracy float64
	cmd := &cobra.Command{
		Use:   "bound SUCCESSES DRAWS POPULATION",
		Short: "Lower bound on the population success rate",
		Long: `Print the largest success rate s such that the population rate is at
least s with the given confidence, after SUCCESSES successful draws in DRAWS
tests of a population of size POPULATION.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			v, err := parseCounts(args)
			if err != nil {
				return err
			}
			conf := floatFlag(cmd, "confidence", confidence, cfg.Bounds.Confidence)
			acc := floatFlag(cmd, "accuracy", accuracy, cfg.Bounds.Accuracy)
			lb, err := stats.MinSuccessFraction(v[0], v[1], v[2], conf, acc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lower_bound=%.6f wilson_lb=%.6f confidence=%g accuracy=%g\n",
				lb, stats.WilsonLowerBound(v[0], v[1], cfg.Bounds.WilsonZ), conf, acc)
			return nil
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", stats.DefaultConfidence, "Confidence level")
	cmd.Flags().Float64Var(&accuracy, "accuracy", stats.DefaultAccuracy, "Step of the search over s")
	return cmd
}

func newPosteriorCommand(opts *rootOptions) *cobra.Command {
	var threshold float64
	cmd := &cobra.Command{
		Use:   "posterior SUCCESSES DRAWS POPULATION",
		Short: "Probability that the population success rate is at least the threshold",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			v, err := parseCounts(args)
			if err != nil {
				return err
			}
			s := floatFlag(cmd, "threshold", threshold, cfg.Bounds.Threshold)
			p, err := stats.ProbSGivenK(v[0], v[1], v[2], s)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "posterior=%.6f threshold=%g\n", p, s)
			return nil
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", stats.DefaultThreshold, "Success rate threshold s")
	return cmd
}

func newTestLengthCommand(opts *rootOptions) *cobra.Command {
	var sLimit, confidence, accuracy float64
	cmd := &cobra.Command{
		Use:   "test-length POPULATION",
		Short: "Consecutive successful tests needed to certify a success rate",
		Long: `Print the minimum number of tests, all successful, after which the lower
bound on the success rate of a population of size POPULATION reaches the
success limit. Prints -1 when the population is too small.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			v, err := parseCounts(args)
			if err != nil {
				return err
			}
			sl := floatFlag(cmd, "success-limit", sLimit, cfg.Bounds.SuccessLimit)
			conf := floatFlag(cmd, "confidence", confidence, cfg.Bounds.Confidence)
			acc := floatFlag(cmd, "accuracy", accuracy, cfg.Bounds.Accuracy)
			n, err := stats.MinTestLength(v[0], sl, conf, acc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
			return nil
		},
	}
	cmd.Flags().Float64Var(&sLimit, "success-limit", stats.DefaultSuccessLimit, "Success rate to certify")
	cmd.Flags().Float64Var(&confidence, "confidence", stats.DefaultConfidence, "Confidence level")
	cmd.Flags().Float64Var(&accuracy, "accuracy", stats.DefaultAccuracy, "Step of the search over s")
	return cmd
}

func newConfigTestCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config-test",
		Short: "Validate the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d campaigns, confidence=%g accuracy=%g success_limit=%g\n",
				len(cfg.Campaigns), cfg.Bounds.Confidence, cfg.Bounds.Accuracy, cfg.Bounds.SuccessLimit)
			return nil
		},
	}
}
