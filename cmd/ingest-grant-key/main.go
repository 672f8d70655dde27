// Package main provides a one-shot utility for ingest grant key generation.
//
// It emits the asymmetric keypair used by write-surface grant checks.
package main

import (
	"os"

	"github.com/louisbranch/rewind/internal/platform/config"
	"github.com/louisbranch/rewind/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate ingest grant key: %v", err)
	}
}
