// Command formctl inspects form definitions and runs the field rules offline.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/validation"
	"github.com/noah-isme/guard-forms/pkg/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	definitions string
	verbose     bool
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "formctl",
		Short:         "Inspect and exercise guard admin form definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.definitions, "definitions", "d", "", "Directory with form definitions (embedded set when empty)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(formsCmd(opts), kindsCmd(opts), validateCmd(opts), normalizeNameCmd())
	return cmd
}

func (o *options) registry() (*forms.Registry, *zap.Logger, error) {
	logr := logger.NewCLI(o.verbose)
	reg, err := forms.NewRegistry(o.definitions, logr)
	if err != nil {
		return nil, nil, err
	}
	return reg, logr, nil
}

func formsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List the loaded form definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := opts.registry()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tENTITY\tFIELDS\tSUBMIT\tTITLE")
			for _, def := range reg.List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s %s\t%s\n", def.ID, def.Entity, len(def.Fields), def.Submit.Method, def.Submit.Endpoint, def.Title)
			}
			return w.Flush()
		},
	}
}

func kindsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the field rule kinds and how many loaded fields use each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, _, err := opts.registry()
			if err != nil {
				return err
			}
			used := map[string]int{}
			for _, def := range reg.List() {
				for _, f := range def.Fields {
					used[f.Kind]++
				}
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tFIELDS")
			for _, kind := range validation.Kinds() {
				fmt.Fprintf(w, "%s\t%d\n", kind, used[kind])
			}
			return w.Flush()
		},
	}
}

func validateCmd(opts *options) *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "validate <form> [field=value ...]",
		Short: "Validate values against a form and print the report as YAML",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, logr, err := opts.registry()
			if err != nil {
				return err
			}
			def, ok := reg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown form %q", args[0])
			}
			day := time.Now()
			if today != "" {
				if day, err = time.ParseInLocation("2006-01-02", today, time.Local); err != nil {
					return fmt.Errorf("invalid --today: %w", err)
				}
			}

			values := def.Defaults()
			for _, pair := range args[1:] {
				field, value, found := strings.Cut(pair, "=")
				if !found {
					return fmt.Errorf("expected field=value, got %q", pair)
				}
				if _, known := def.Field(field); !known {
					return fmt.Errorf("form %s has no field %q", def.ID, field)
				}
				values[field] = value
			}
			logr.Debug("validating", zap.String("form", def.ID), zap.Strings("fields", keys(values)))

			report := def.Validate(values, day)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("form %s is invalid: first invalid field %s", def.ID, report.FirstInvalid)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "Reference date for date rules (YYYY-MM-DD)")
	return cmd
}

func normalizeNameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-name <name>",
		Short: "Normalize a full name and check it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := strings.Join(args, " ")
			res := validation.FullName(raw, validation.Context{Options: validation.Options{Required: true}})
			fmt.Fprintln(cmd.OutOrStdout(), res.Value)
			if !res.Valid {
				return fmt.Errorf("%s", res.Message)
			}
			return nil
		},
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
