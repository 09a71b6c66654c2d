package main

import (
	"os"

	wiretapcmder "github.com/papercomputeco/wiretap/cmd/wiretap"
)

func main() {
	cmd := wiretapcmder.NewWiretapCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
