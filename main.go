package main

import (
	"context"
	"flag"
	"fmt"
	"kwil-client/config"
	"kwil-client/pkg/mysql"
	"kwil-client/rpc"
	"kwil-client/tasks"
	"kwil-client/util/log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
)

var pprofEnabled bool
var pprofPort int

func init() {
	flag.BoolVar(&pprofEnabled, "pprof", false, "enable pprof")
	flag.IntVar(&pprofPort, "p", 6060, "pprof port number")
}

func main() {
	flag.Parse()
	config.Load(true)
	log.Init(config.DebugMode(), config.GetLogPath())
	log.SetPrefix(config.GetLabel())

	if pprofEnabled {
		enablePProf()
	}

	mysql.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node := rpc.NewClient(config.GetProvider(), rpc.WithTimeout(config.GetTimeout()))
	if err := tasks.Run(ctx, node, config.GetWatchInterval()); err != nil {
		log.Fatal(err)
	}

	<-ctx.Done()
	log.Info("Shutting down.")
	if err := mysql.Close(); err != nil {
		log.Error(err)
	}
}

func enablePProf() {
	if pprofPort < 1 || pprofPort > 65535 {
		panic("Incorrect pprof port")
	}

	go func() {
		url := fmt.Sprintf("localhost:%d", pprofPort)
		log.Debug(http.ListenAndServe(url, nil))
	}()
}
