// Command authd serves the authcore HTTP API.
//
//	authd serve   --config authd.yaml
//	authd migrate --config authd.yaml
//
// Configuration comes from defaults, the YAML file and AUTHCORE_* variables.
// The process refuses to start without AUTHCORE_JWT_SECRET (or jwt.secret).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
