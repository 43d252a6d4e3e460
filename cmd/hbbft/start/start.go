package start

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DE-labtory/hbbft/api"
	"github.com/DE-labtory/hbbft/config"
	"github.com/DE-labtory/hbbft/core"
	"github.com/DE-labtory/hbbft/log"
	kitlog "github.com/go-kit/kit/log"
	"github.com/kyokomi/emoji"
	"github.com/urfave/cli"
)

const connectRetryInterval = time.Second

func Cmd() cli.Command {
	return cli.Command{
		Name:  "start",
		Usage: "hbbft start",
		Action: func(c *cli.Context) error {
			return startHbbft()
		},
	}
}

func startHbbft() error {
	conf := config.Get()
	log.SetLevel(conf.Log.Level)
	if conf.Log.File != "" {
		if err := log.EnableFileLogger(true, conf.Log.File); err != nil {
			return err
		}
	}

	node, err := core.New(api.ValidateTx)
	if err != nil {
		emoji.Printf(":broken_heart: failed to create node: %s\n", err)
		return err
	}
	node.Run()
	defer node.Close()

	go connectAll(node, conf.Members.Addresses)
	go consumeBatches(node)

	httpLogger := kitlog.With(log.Logger(), "component", "http")
	server := &http.Server{
		Addr:    conf.Api.Address,
		Handler: api.NewApiHandler(node, httpLogger),
	}
	go func() {
		httpLogger.Log("message", "http server started", "address", conf.Api.Address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpLogger.Log("message", "http server closed", "err", err.Error())
		}
	}()

	emoji.Printf(":rocket: hbbft node started at %s\n", conf.Identity.Address)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	emoji.Println(":wave: shutting down")
	return server.Close()
}

// connectAll retries until every member is connected, members may start
// later than this node
func connectAll(node core.Hbbft, addresses []string) {
	for {
		err := node.ConnectAll(addresses)
		if err == nil {
			log.Info("message", "connected to every member")
			return
		}
		log.Debug("message", "retry connection", "err", err.Error())
		time.Sleep(connectRetryInterval)
	}
}

func consumeBatches(node core.Hbbft) {
	for batch := range node.Result() {
		log.Info("message", "committed", "epoch", batch.Epoch, "proposers", len(batch.Entries), "txs", len(batch.TxList()))
	}
}
