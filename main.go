package main

import (
	"log"

	"github.com/coreux/asset-gateway/cmd"
	"github.com/coreux/asset-gateway/config"
)

func main() {
	log.Printf("asset gateway %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}
