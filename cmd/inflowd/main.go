/*
This command provides an executable version of the inflow form parsing
server.

For the list of command line options, run:

	inflowd -help

For details about the usage of the library, please see the documentation of
the root inflow package.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/zalando/inflow"
	"github.com/zalando/inflow/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("error processing config: %s", err)
	}

	log.Fatal(inflow.Run(cfg.ToOptions()))
}
