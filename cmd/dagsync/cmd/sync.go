package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/oneconcern/dagsync/pkg/core"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var pushCmd = &cobra.Command{
	Use:   "push [revision...]",
	Short: "Send the dags of the local repository to the remote",
	Long: `Send to the remote the nodes and blobs it is missing.

Without arguments, every dag is pushed. A revision is a node id prefix of at least 4
hex digits, optionally preceded by a dag number and a colon: only the ancestry of the
revision is pushed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, core.DirectionPush, args)
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull [revision...]",
	Short: "Fetch the dags of the remote into the local repository",
	Long: `Fetch from the remote the nodes and blobs the local repository is missing.

Without arguments, every dag is pulled. Revisions limit the pull to their ancestries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, core.DirectionPull, args)
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone <remote> <path>",
	Short: "Create a local copy of a remote repository",
	Long: `Create a new repository at path, related to the remote, and pull all its dags.

The remote is either the URL of a dagsync server or the path to a local repository.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		l, err := logger()
		if err != nil {
			return err
		}
		opts, err := syncOptions(l)
		if err != nil {
			return err
		}
		peer, closePeer, err := openPeer(args[0], l)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, closePeer()) }()

		r, stats, err := core.Clone(cmd.Context(), peer, args[1], []repo.Option{repo.WithLogger(l)}, opts...)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, r.Close()) }()

		report(cmd.OutOrStdout(), "cloned", stats)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(cloneCmd)
}

func runSync(cmd *cobra.Command, direction core.Direction, revs []string) (err error) {
	l, err := logger()
	if err != nil {
		return err
	}
	opts, err := syncOptions(l)
	if err != nil {
		return err
	}
	local, err := openRepo(l)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, local.Close()) }()

	peer, closePeer, err := openPeer(viper.GetString(keyRemote), l)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closePeer()) }()

	stats, err := syncRevs(cmd.Context(), local, peer, direction, revs, opts)
	if err != nil {
		return err
	}
	verb := "pulled"
	if direction == core.DirectionPush {
		verb = "pushed"
	}
	report(cmd.OutOrStdout(), verb, stats)
	return nil
}

func syncRevs(ctx context.Context, local *repo.Repository, peer wire.Peer, direction core.Direction, revs []string, opts []core.Option) (*core.Stats, error) {
	if len(revs) == 0 {
		if direction == core.DirectionPush {
			return core.Push(ctx, local, peer, opts...)
		}
		return core.Pull(ctx, local, peer, opts...)
	}

	session, err := core.Begin(ctx, local, peer, direction, opts...)
	if err != nil {
		return nil, err
	}
	for _, rev := range revs {
		if err := session.AddRev(ctx, rev); err != nil {
			return nil, multierr.Append(err, session.Abort())
		}
	}
	return session.Commit(ctx)
}

func report(w io.Writer, verb string, stats *core.Stats) {
	_, _ = fmt.Fprintf(w, "%s %d nodes and %d blobs in %d round trips (%d for blobs), %s\n",
		verb, stats.NodesTransferred, stats.BlobsTransferred, stats.RoundTrips, stats.BlobRoundTrips, stats.Duration)
}
