// Copyright © 2018 One Concern

package cmd

import (
	"strings"

	"github.com/docker/go-units"
	"github.com/oneconcern/dagsync/pkg/core"
	"github.com/oneconcern/dagsync/pkg/dlogger"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/httpd"
	"github.com/oneconcern/dagsync/pkg/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// keys of the configuration, shared by flags, env and config file
const (
	keyRepo          = "repo"
	keyRemote        = "remote"
	keyLogLevel      = "loglevel"
	keyBlobBatchSize = "blob-batch-size"
	keyMargin        = "margin"
	keyListen        = "listen"

	defaultLogLevel      = dlogger.LogLevelWarn
	defaultMargin        = 1
	defaultBlobBatchSize = "16MiB"
	defaultListen        = httpd.DefaultListen
)

var errBadFlag = errors.New("invalid flag")

type flagsT struct {
	node struct {
		DagNum  string
		Parents string
	}
	repo struct {
		Description string
	}
	dag struct {
		DagNum string
	}
}

var params flagsT

func bindFlag(c *cobra.Command, key string, persistent bool) {
	fs := c.Flags()
	if persistent {
		fs = c.PersistentFlags()
	}
	if err := viper.BindPFlag(key, fs.Lookup(key)); err != nil {
		panic(err)
	}
}

func addRepoFlag(c *cobra.Command) {
	c.PersistentFlags().String(keyRepo, ".", "Path to the local repository")
	bindFlag(c, keyRepo, true)
}

func addLogLevelFlag(c *cobra.Command) {
	c.PersistentFlags().String(keyLogLevel, defaultLogLevel, "Log level: debug, info, warn, error or none")
	bindFlag(c, keyLogLevel, true)
}

func addMarginFlag(c *cobra.Command) {
	c.PersistentFlags().Int64(keyMargin, defaultMargin, "Extra generations requested beyond the generation hints")
	bindFlag(c, keyMargin, true)
}

func addBlobBatchSizeFlag(c *cobra.Command) {
	c.PersistentFlags().String(keyBlobBatchSize, defaultBlobBatchSize, "Maximum size of a batch of blobs sent in one exchange, e.g. 4MiB")
	bindFlag(c, keyBlobBatchSize, true)
}

func addRemoteFlag(c *cobra.Command) {
	c.PersistentFlags().String(keyRemote, "", "URL of a dagsync server, or path to a local repository")
	bindFlag(c, keyRemote, true)
}

func addListenFlag(c *cobra.Command) {
	c.Flags().String(keyListen, defaultListen, "Address the server listens on")
	bindFlag(c, keyListen, false)
}

func addDagNumFlag(c *cobra.Command, target *string) {
	c.Flags().StringVar(target, "dag", model.DagNumVersionControl.String(), "Dag number, as 16 hex digits")
}

func addDescriptionFlag(c *cobra.Command) {
	c.Flags().StringVar(&params.repo.Description, "description", "", "Description of the repository")
}

func addParentsFlag(c *cobra.Command) {
	c.Flags().StringVar(&params.node.Parents, "parents", "", "Comma-separated ids of the parent nodes")
}

func logger() (*zap.Logger, error) {
	return dlogger.GetLogger(viper.GetString(keyLogLevel))
}

func parseDagNum(s string) (model.DagNum, error) {
	dagnum, err := model.ParseDagNum(s)
	if err != nil {
		return 0, errBadFlag.WrapMessage("--dag %q: %v", s, err)
	}
	return dagnum, nil
}

func parseNodeIDs(list string) ([]model.NodeID, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	ids := make([]model.NodeID, 0, len(parts))
	for _, s := range parts {
		id, err := model.ParseNodeID(strings.TrimSpace(s))
		if err != nil {
			return nil, errBadFlag.WrapMessage("--parents %q: %v", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// syncOptions yields the options of sync sessions from the configuration
func syncOptions(l *zap.Logger) ([]core.Option, error) {
	size, err := units.RAMInBytes(viper.GetString(keyBlobBatchSize))
	if err != nil {
		return nil, errBadFlag.WrapMessage("--%s: %v", keyBlobBatchSize, err)
	}
	margin := viper.GetInt64(keyMargin)
	if margin < 0 {
		return nil, errBadFlag.WrapMessage("--%s must not be negative", keyMargin)
	}
	return []core.Option{
		core.Logger(l),
		core.WithGenerationMargin(margin),
		core.WithBlobBatchSize(int(size)),
	}, nil
}
