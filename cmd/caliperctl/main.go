// Package main provides caliperctl, a small operator CLI that drives
// the caliper annotation runtime's singleton coordinator from the
// command line: begin and end one annotation, then write
// the resulting attribute and node tables through the configured
// writer service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/caliperhq/caliper"
)

var (
	output    string
	attrName  string
	attrValue string
)

var rootCmd = &cobra.Command{
	Use:   "caliperctl",
	Short: "Operator CLI for the caliper annotation runtime",
	Long:  "caliperctl drives the caliper singleton coordinator from the command line for local inspection and smoke-testing.",
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Begin, hold, and end one annotation, then write metadata",
	RunE:  runAnnotate,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the caliper configuration namespace",
	RunE:  runConfig,
}

func init() {
	annotateCmd.Flags().StringVar(&attrName, "attr", "phase", "attribute name to annotate with")
	annotateCmd.Flags().StringVar(&attrValue, "value", "caliperctl", "payload to annotate with")
	annotateCmd.Flags().StringVar(&output, "output", "", "override the configured writer service name")

	rootCmd.AddCommand(annotateCmd, configCmd)
}

func runAnnotate(_ *cobra.Command, _ []string) error {
	co := caliper.Instance()

	if output != "" {
		co.Config().Set("output", output)
	}

	attr := co.CreateAttribute(attrName, caliper.TypeString, 0)
	env := co.CurrentEnvironment()

	if err := co.Begin(env, attr, []byte(attrValue)); err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := co.End(env, attr); err != nil {
		return fmt.Errorf("end: %w", err)
	}

	if err := co.WriteMetadata(os.Stdout); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

func runConfig(_ *cobra.Command, _ []string) error {
	for _, e := range caliper.Describe() {
		fmt.Printf("%-20s %-8s default=%-8s %s\n", e.Key, e.Type, e.Default, e.ShortDesc)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
