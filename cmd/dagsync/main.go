// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/dagsync/cmd/dagsync/cmd"
)

func main() {
	cmd.Execute()
}
