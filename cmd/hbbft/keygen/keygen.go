package keygen

import (
	"fmt"
	"path/filepath"

	"github.com/DE-labtory/hbbft"
	"github.com/DE-labtory/hbbft/tpke"
	"github.com/kyokomi/emoji"
	"github.com/urfave/cli"
)

func Cmd() cli.Command {
	return cli.Command{
		Name:      "keygen",
		Usage:     "Generate threshold key shares of every member as trusted dealer",
		UsageText: "hbbft keygen --n 4 --out ./keys",
		Flags: []cli.Flag{
			cli.IntFlag{
				Name:  "n",
				Value: 4,
				Usage: "network size",
			},
			cli.IntFlag{
				Name:  "f",
				Usage: "number of byzantine nodes, maximum tolerable number when 0",
			},
			cli.StringFlag{
				Name:  "scheme",
				Value: tpke.SchemeElGamal,
				Usage: "threshold encryption scheme, elgamal or bls12",
			},
			cli.StringFlag{
				Name:  "out",
				Value: "keys",
				Usage: "directory to write key share files",
			},
		},
		Action: func(c *cli.Context) error {
			paths, err := Generate(c.String("scheme"), c.Int("n"), c.Int("f"), c.String("out"))
			if err != nil {
				emoji.Printf(":broken_heart: key generation failed with error: %s\n", err)
				return err
			}
			for _, path := range paths {
				emoji.Printf(":key: %s\n", path)
			}
			return nil
		},
	}
}

// Generate writes key share of member i to key-i.json in dir. Member index
// follows the order of member addresses.
func Generate(scheme string, n, f int, dir string) ([]string, error) {
	if f == 0 {
		f = hbbft.MaxFaulty(n)
	}

	keySet, err := tpke.Setup(scheme, n, f)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		keyShare, err := keySet.KeyShare(i)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, fmt.Sprintf("key-%d.json", i))
		if err := tpke.WriteKeyShare(path, keyShare); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
