// Package main streams registered depth and color from an RGB-D sensor and records them on demand.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newApp(defaultDeps()).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
