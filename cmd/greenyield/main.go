// greenyield is the command-line front end of the yield prediction engine.
//
// Usage:
//
//	greenyield crops [--crop-table=<path>]
//	greenyield predict --crop=<id> --temperature=<C> --humidity=<%> \
//	    --light-hours=<h> --growth-days=<d> --area=<m2> [--seed=<n>] [--json]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
