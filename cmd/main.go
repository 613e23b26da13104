package main

import (
	"os"

	"github.com/soundprediction/kgembed/cmd/kgembed"
)

func main() {
	if err := kgembed.Execute(); err != nil {
		os.Exit(1)
	}
}
