package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trigonal/intake/internal/domain"
	"github.com/trigonal/intake/internal/store"
	"github.com/trigonal/intake/internal/triage"
)

func briefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "briefs",
		Short: "Review submitted briefs",
	}

	cmd.AddCommand(briefsListCmd())
	cmd.AddCommand(briefsShowCmd())
	cmd.AddCommand(briefsStatusCmd())
	cmd.AddCommand(briefsSearchCmd())
	return cmd
}

func briefsListCmd() *cobra.Command {
	var (
		limit  int
		offset int
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent briefs",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ListFilter{Limit: limit, Offset: offset}
			if status != "" {
				st, err := domain.ParseBriefStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			briefs, err := s.ListBriefs(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if len(briefs) == 0 {
				fmt.Println("No briefs yet.")
				return nil
			}

			for _, b := range briefs {
				printBriefLine(b)
			}

			counts, err := s.CountByStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("\n%d new, %d reviewing, %d archived\n",
				counts[domain.StatusNew], counts[domain.StatusReviewing], counts[domain.StatusArchived])
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of briefs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many briefs")
	cmd.Flags().StringVar(&status, "status", "", "only briefs in this status (NEW, REVIEWING, ARCHIVED)")
	return cmd
}

func briefsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show brief details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.GetBrief(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("brief %s: %w", args[0], err)
			}

			inq := b.Inquiry
			fmt.Printf("ID:           %s\n", b.ID)
			fmt.Printf("Created:      %s\n", b.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Status:       %s\n", b.Status)
			if flags := triage.Assess(inq); flags.Banner != "" {
				fmt.Printf("Flags:        %s\n", flags.Banner)
			}
			fmt.Printf("Organization: %s\n", inq.Identity.Organization)
			fmt.Printf("Contact:      %s <%s>\n", inq.Identity.Name, inq.Identity.Email)
			if inq.Source != "" {
				fmt.Printf("Source:       %s\n", inq.Source)
			}
			fmt.Printf("Scale:        %s\n", inq.Scale)
			fmt.Printf("Timeline:     %s\n", inq.Timeline)
			fmt.Printf("Scope:        %s\n", joinKeys(inq.Domains))
			if len(inq.Features) > 0 {
				fmt.Printf("Features:     %s\n", strings.Join(inq.Features, ", "))
			}

			if b.Org != nil {
				fmt.Printf("\nWebsite: %s\n", b.Org.Domain)
				if b.Org.Title != "" {
					fmt.Printf("  %s\n", b.Org.Title)
				}
				if b.Org.Description != "" {
					fmt.Printf("  %s\n", b.Org.Description)
				}
			}

			if b.Recommendation != "" {
				fmt.Printf("\nRecommendation:\n%s\n", b.Recommendation)
			}
			return nil
		},
	}
}

func briefsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [id] [NEW|REVIEWING|ARCHIVED]",
		Short: "Move a brief through triage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseBriefStatus(args[1])
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.UpdateStatus(cmd.Context(), args[0], st)
			if err != nil {
				return fmt.Errorf("brief %s: %w", args[0], err)
			}

			fmt.Printf("%s  %s\n", shortID(b.ID), b.Status)
			return nil
		},
	}
}

func briefsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search briefs by contact or feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			briefs, err := s.SearchBriefs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if len(briefs) == 0 {
				fmt.Println("No matching briefs found.")
				return nil
			}

			for _, b := range briefs {
				printBriefLine(b)
			}
			return nil
		},
	}
}

func printBriefLine(b domain.Brief) {
	mark := " "
	if triage.Assess(b.Inquiry).Urgent {
		mark = "!"
	}
	fmt.Printf("%s %s  %-9s  %s  %s\n",
		mark, shortID(b.ID), b.Status, b.CreatedAt.Format("2006-01-02"),
		truncate(b.Inquiry.Identity.Organization+" / "+joinKeys(b.Inquiry.Domains), 60))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
