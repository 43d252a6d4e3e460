package init

import (
	"path/filepath"

	"github.com/DE-labtory/hbbft/config"
	"github.com/kyokomi/emoji"
	"github.com/urfave/cli"
)

func Cmd() cli.Command {
	return cli.Command{
		Name:      "init",
		Usage:     "Initialize hbbft configuration",
		UsageText: "hbbft init [FILE_PATH]",
		Action: func(c *cli.Context) error {
			return initHbbft(c.Args().First())
		},
	}
}

func initHbbft(srcPath string) error {
	if err := config.Init(srcPath); err != nil {
		emoji.Printf(":broken_heart: initialize failed with error: %s\n", err)
		return err
	}
	emoji.Printf(":beer: successfully initialized at %s\n", filepath.Dir(config.Path()))
	return nil
}
