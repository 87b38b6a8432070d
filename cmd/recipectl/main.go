// recipectl is the operator CLI for the recipe search service: ad-hoc
// searches, the constants parity check, re-embedding and cache upkeep.
package main

import (
	"os"

	"github.com/pageza/alchemorsel-v2/search/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
