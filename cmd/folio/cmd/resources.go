package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/admin"
	"github.com/jmcleod/folio/client"
)

var (
	projectCategory string
	projectFeatured string
	projectLimit    int
	projectOffset   int
	reviewApproved  string
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage portfolio projects",
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Manage project categories",
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Manage client reviews",
}

// optionalBool parses an empty string as "no filter".
func optionalBool(name, s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("--%s must be true or false", name)
	}
	return &b, nil
}

func apiError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(client.Message(err))
}

func newProjectsCmds() []*cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			featured, err := optionalBool("featured", projectFeatured)
			if err != nil {
				return err
			}
			items, err := a.admin.Projects.List(cmd.Context(), admin.ProjectFilter{
				Category: projectCategory,
				Featured: featured,
				Limit:    projectLimit,
				Offset:   projectOffset,
			})
			if err != nil {
				return apiError(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tFEATURED\tTECHNOLOGIES")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", p.ID, p.Title, p.Category, p.Featured, strings.Join(p.Technologies, ", "))
			}
			return tw.Flush()
		}),
	}
	list.Flags().StringVar(&projectCategory, "category", "", "Only projects in this category")
	list.Flags().StringVar(&projectFeatured, "featured", "", "Filter by featured flag (true/false)")
	list.Flags().IntVar(&projectLimit, "limit", 0, "Page size")
	list.Flags().IntVar(&projectOffset, "offset", 0, "Page offset")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			p, err := a.admin.Projects.Get(cmd.Context(), args[0])
			if err != nil {
				return apiError(err)
			}
			return printJSON(cmd.OutOrStdout(), p)
		}),
	}
	del := deleteCmd("project", func(a *app) func(cmd *cobra.Command, id string) error {
		return func(cmd *cobra.Command, id string) error { return a.admin.Projects.Delete(cmd.Context(), id) }
	})
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show project statistics",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := requireLogin(a); err != nil {
				return err
			}
			s, err := a.admin.Projects.Stats(cmd.Context())
			if err != nil {
				return apiError(err)
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}
	return []*cobra.Command{list, get, del, stats}
}

func newCategoriesCmds() []*cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			items, err := a.admin.Categories.List(cmd.Context())
			if err != nil {
				return apiError(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSLUG")
			for _, c := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Slug)
			}
			return tw.Flush()
		}),
	}
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one category",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			c, err := a.admin.Categories.Get(cmd.Context(), args[0])
			if err != nil {
				return apiError(err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		}),
	}
	del := deleteCmd("category", func(a *app) func(cmd *cobra.Command, id string) error {
		return func(cmd *cobra.Command, id string) error { return a.admin.Categories.Delete(cmd.Context(), id) }
	})
	return []*cobra.Command{list, get, del}
}

func newReviewsCmds() []*cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List reviews",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			approved, err := optionalBool("approved", reviewApproved)
			if err != nil {
				return err
			}
			items, err := a.admin.Reviews.List(cmd.Context(), approved)
			if err != nil {
				return apiError(err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOMPANY\tRATING\tAPPROVED")
			for _, r := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", r.ID, r.Name, r.Company, r.Rating, r.Approved)
			}
			return tw.Flush()
		}),
	}
	list.Flags().StringVar(&reviewApproved, "approved", "", "Filter by moderation state (true/false)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one review",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			r, err := a.admin.Reviews.Get(cmd.Context(), args[0])
			if err != nil {
				return apiError(err)
			}
			return printJSON(cmd.OutOrStdout(), r)
		}),
	}
	del := deleteCmd("review", func(a *app) func(cmd *cobra.Command, id string) error {
		return func(cmd *cobra.Command, id string) error { return a.admin.Reviews.Delete(cmd.Context(), id) }
	})
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show review statistics",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			if err := requireLogin(a); err != nil {
				return err
			}
			s, err := a.admin.Reviews.Stats(cmd.Context())
			if err != nil {
				return apiError(err)
			}
			return printJSON(cmd.OutOrStdout(), s)
		}),
	}
	return []*cobra.Command{list, get, del, stats}
}

func deleteCmd(name string, del func(a *app) func(cmd *cobra.Command, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a " + name,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
			if err := requireLogin(a); err != nil {
				return err
			}
			if err := del(a)(cmd, args[0]); err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", name, args[0])
			return nil
		}),
	}
}

func init() {
	projectsCmd.AddCommand(newProjectsCmds()...)
	categoriesCmd.AddCommand(newCategoriesCmds()...)
	reviewsCmd.AddCommand(newReviewsCmds()...)
	rootCmd.AddCommand(projectsCmd, categoriesCmd, reviewsCmd)
}
