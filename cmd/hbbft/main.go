package main

import (
	"os"
	"time"

	initCmd "github.com/DE-labtory/hbbft/cmd/hbbft/init"
	"github.com/DE-labtory/hbbft/cmd/hbbft/keygen"
	"github.com/DE-labtory/hbbft/cmd/hbbft/start"
	"github.com/DE-labtory/hbbft/config"
	"github.com/DE-labtory/hbbft/log"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "hbbft"
	app.Version = "0.1.0"
	app.Compiled = time.Now()
	app.Usage = "HoneyBadgerBFT, asynchronous atomic broadcast without timing assumption"
	app.UsageText = "hbbft [options] command [command options] [arguments...]"
	app.Authors = []cli.Author{
		{
			Name:  "DE-labtory",
			Email: "de.labtory@gmail.com",
		},
	}
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug, d",
			Usage: "set debug mode",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "use config file of FILE_PATH instead of " + config.Path(),
		},
	}
	app.Before = func(c *cli.Context) error {
		if c.GlobalBool("debug") {
			log.SetToDebug()
		}
		if path := c.GlobalString("config"); path != "" {
			config.SetPath(path)
		}
		return nil
	}

	app.Commands = []cli.Command{}
	app.Commands = append(app.Commands, initCmd.Cmd())
	app.Commands = append(app.Commands, keygen.Cmd())
	app.Commands = append(app.Commands, start.Cmd())

	if err := app.Run(os.Args); err != nil {
		log.Error("err", err.Error())
		os.Exit(1)
	}
}
