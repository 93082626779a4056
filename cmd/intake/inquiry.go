package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/inquiry"
	"github.com/trigonal/intake/internal/triage"
)

// formFlags are the answers shared by preview and submit
type formFlags struct {
	source   string
	domains  []string
	features []string
	scale    string
	timeline string
	identity domain.Identity
}

func (ff *formFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&ff.source, "source", "s", "", "pre-select a source preset (e.g. orthanc, lab_bridge)")
	cmd.Flags().StringSliceVarP(&ff.domains, "domain", "d", nil, "select a domain (repeatable)")
	cmd.Flags().StringSliceVarP(&ff.features, "feature", "f", nil, "select a feature tag (repeatable)")
	cmd.Flags().StringVar(&ff.scale, "scale", "", "SINGLE_FACILITY, MULTI_SITE or NATIONAL")
	cmd.Flags().StringVar(&ff.timeline, "timeline", "", "IMMEDIATE, THIS_QUARTER or PLANNING")
	cmd.Flags().StringVar(&ff.identity.Name, "name", "", "full name")
	cmd.Flags().StringVar(&ff.identity.Organization, "org", "", "organization")
	cmd.Flags().StringVar(&ff.identity.Email, "email", "", "work e-mail")
}

// build replays the flags onto a new form
func (ff *formFlags) build(c *domain.Catalog, opts ...inquiry.Option) *inquiry.Form {
	opts = append(opts, inquiry.WithSource(ff.source), inquiry.WithLogger(logger))
	f := inquiry.New(c, opts...)

	if _, ok := c.Preset(ff.source); ff.source != "" && !ok {
		fmt.Fprintf(os.Stderr, "warning: unknown source %q ignored\n", ff.source)
	}

	for _, k := range ff.domains {
		key := domain.DomainKey(strings.ToUpper(strings.TrimSpace(k)))
		if !c.Has(key) {
			fmt.Fprintf(os.Stderr, "warning: unknown domain %q ignored\n", k)
			continue
		}
		if !f.HasDomain(key) {
			f.ToggleDomain(key)
		}
	}
	for _, tag := range ff.features {
		if !f.HasFeature(tag) {
			f.ToggleFeature(tag)
		}
	}
	if ff.scale != "" {
		f.SetProjectScale(domain.ProjectScale(strings.ToUpper(ff.scale)))
	}
	if ff.timeline != "" {
		f.SetTimeline(domain.Timeline(strings.ToUpper(ff.timeline)))
	}
	for _, field := range domain.IdentityFields() {
		f.UpdateIdentityField(field, ff.identity.Get(field))
	}
	return f
}

func previewCmd() *cobra.Command {
	var ff formFlags

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the consultation brief as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getCatalog()
			if err != nil {
				return err
			}

			f := ff.build(c)
			defer f.Close()

			out, err := f.Preview()
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}

	ff.bind(cmd)
	return cmd
}

func submitCmd() *cobra.Command {
	var (
		ff      formFlags
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a consultation inquiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := getCatalog()
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := newService(s)
			if err != nil {
				return err
			}

			f := ff.build(c, inquiry.WithSubmitter(svc), inquiry.WithLatency(cfg.SubmitLatency))
			defer f.Close()

			if errs := f.Validate(); errs != nil {
				return errs
			}

			inq := f.Inquiry()
			if flags := triage.Assess(inq); flags.Banner != "" {
				fmt.Printf("!! %s\n", flags.Banner)
			}
			fmt.Printf("Scope: %s\n", joinKeys(inq.Domains))

			if !f.Submit() {
				return fmt.Errorf("inquiry cannot be submitted")
			}

			fmt.Print("Analyzing... ")
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if _, err := f.Wait(ctx); err != nil {
				fmt.Println("failed")
				return fmt.Errorf("submit inquiry: %w", err)
			}
			fmt.Println("done")

			fmt.Printf("Brief submitted: %s\n", f.Reference())
			fmt.Println("A Principal Architect will review your requirements.")
			return nil
		},
	}

	ff.bind(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "give up waiting after this long")
	return cmd
}
