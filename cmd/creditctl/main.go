// Command creditctl runs operator tasks against the same store, ledger and
// locks as the API server: schema migration, reconciliation and the
// resume operations for partially completed credits.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
