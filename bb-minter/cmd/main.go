package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli"

	minter "github.com/bitbarlabs/bitbar/bb-minter"
	"github.com/bitbarlabs/bitbar/bb-minter/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
)

func main() {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Version = Version + "-" + GitCommit
	app.Name = "bitbar-minter"
	app.Usage = "Bitbar minting worker"
	app.Description = "Polls the bitbar monitor for pending mints and drives the external inscription tool"
	app.Commands = []cli.Command{
		{
			Name:      "mint",
			Usage:     "Run the minting worker",
			ArgsUsage: "<wallet-name> <file-path>",
			Action:    minter.Main(Version),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("application failed", "err", err)
	}
}
