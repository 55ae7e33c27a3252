// The main package for the lsst-io-analysis executable.
package main

import (
	"github.com/lsst-sqre/lsst-io-analysis/cmd"
)

func main() {
	cmd.Execute()
}
