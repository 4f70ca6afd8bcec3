package cmd

import (
	"fmt"

	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/spf13/cobra"
)

var leavesCmd = &cobra.Command{
	Use:   "leaves",
	Short: "List the leaves of a dag",
	Long:  "List the ids of the nodes of a dag that are not the parent of any other node.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dagnum, err := parseDagNum(params.dag.DagNum)
		if err != nil {
			return err
		}
		l, err := logger()
		if err != nil {
			return err
		}
		r, err := openRepo(l)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		s, err := r.Store(dagnum)
		if err != nil {
			return err
		}
		ids, err := s.Leaves(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the consistency of dags",
	Long: `Check that every node of a dag has all its parents, with a consistent generation and id.

Without --dag, all the dags of the repository are checked.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := logger()
		if err != nil {
			return err
		}
		r, err := openRepo(l)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		var dagnums model.DagNums
		if cmd.Flags().Changed("dag") {
			dagnum, err := parseDagNum(params.dag.DagNum)
			if err != nil {
				return err
			}
			dagnums = model.DagNums{dagnum}
		} else if dagnums, err = r.ListDagNums(cmd.Context()); err != nil {
			return err
		}

		for _, dagnum := range dagnums {
			report, err := r.Verify(cmd.Context(), dagnum)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes, %d leaves, %d roots, max generation %d\n",
				dagnum, report.Nodes, report.Leaves, report.Roots, report.MaxGeneration)
		}
		return nil
	},
}

func init() {
	addDagNumFlag(leavesCmd, &params.dag.DagNum)
	addDagNumFlag(verifyCmd, &params.dag.DagNum)

	rootCmd.AddCommand(leavesCmd)
	rootCmd.AddCommand(verifyCmd)
}
