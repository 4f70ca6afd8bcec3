package cmd

import (
	"bytes"
	"fmt"

	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/spf13/cobra"
)

// Build information, set with -ldflags
var (
	Version   string
	BuildDate string
	GitCommit string
)

// VersionInfo describes the build of the binary
type VersionInfo struct {
	Version   string `json:"version,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
}

// NewVersionInfo yields the build information of the binary
func NewVersionInfo() VersionInfo {
	ver := VersionInfo{
		Version:   "dev",
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		Protocol:  wire.ProtocolVersion,
	}
	if Version != "" {
		ver.Version = Version
	}
	return ver
}

func (v VersionInfo) String() string {
	var buf bytes.Buffer
	buf.WriteString("Version: " + v.Version + "\n")
	buf.WriteString("Build date: " + v.BuildDate + "\n")
	buf.WriteString("Commit: " + v.GitCommit + "\n")
	buf.WriteString("Protocol: " + v.Protocol + "\n")
	return buf.String()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the version of dagsync",
	Run: func(cmd *cobra.Command, _ []string) {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), NewVersionInfo().String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
