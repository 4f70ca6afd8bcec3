package cmd

import (
	"fmt"

	"strings"

	"github.com/oneconcern/dagsync/pkg/core"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/httpd"
	"github.com/oneconcern/dagsync/pkg/repo"
	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var errNoRemote = errors.New("no remote specified: use --remote, DAGSYNC_REMOTE or the remote key of the config file")

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Create a new repository",
	Long: `Create a new, empty repository at the location given by --repo.

The new repository gets fresh identifiers: it is not related to any other repository.
Use "dagsync clone" to create a repository that can sync with an existing one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger()
		if err != nil {
			return err
		}
		r, err := repo.Init(viper.GetString(keyRepo), args[0], repo.WithLogger(l), repo.Description(params.repo.Description))
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()

		desc := r.Descriptor()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "initialized repository %s (%s) at %s\n", desc.Name, desc.RepoID, viper.GetString(keyRepo))
		return nil
	},
}

func init() {
	addDescriptionFlag(initCmd)
	rootCmd.AddCommand(initCmd)
}

func openRepo(l *zap.Logger) (*repo.Repository, error) {
	return repo.Open(viper.GetString(keyRepo), repo.WithLogger(l))
}

func isURL(remote string) bool {
	return strings.HasPrefix(remote, "http://") || strings.HasPrefix(remote, "https://")
}

// openPeer reaches a remote, either served over http or a repository on the local file system
func openPeer(remote string, l *zap.Logger) (wire.Peer, func() error, error) {
	if remote == "" {
		return nil, nil, errNoRemote
	}
	if isURL(remote) {
		client := httpd.NewClient(remote)
		return client, client.Close, nil
	}
	r, err := repo.Open(remote, repo.WithLogger(l))
	if err != nil {
		return nil, nil, err
	}
	return core.NewResponder(r, core.ResponderLogger(l)), r.Close, nil
}
