package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Commands to manage the nodes of a dag",
}

var nodeAdd = &cobra.Command{
	Use:   "add [payload...]",
	Short: "Add a node to a dag",
	Long: `Add a node to a dag of the local repository.

Parents must already be present in the dag. A node without parents is a root.
Every payload is stored as a blob referenced by the new node.

Example:
	dagsync node add --parents 3f2a...e1,90bc...07 "merge release branch"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dagnum, err := parseDagNum(params.node.DagNum)
		if err != nil {
			return err
		}
		parents, err := parseNodeIDs(params.node.Parents)
		if err != nil {
			return err
		}
		payloads := make([][]byte, 0, len(args))
		for _, payload := range args {
			payloads = append(payloads, []byte(payload))
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

		node, err := r.AddNode(cmd.Context(), dagnum, parents, payloads...)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), node.ID)
		return nil
	},
}

func init() {
	addDagNumFlag(nodeAdd, &params.node.DagNum)
	addParentsFlag(nodeAdd)

	nodeCmd.AddCommand(nodeAdd)
	rootCmd.AddCommand(nodeCmd)
}
