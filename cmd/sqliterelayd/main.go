// Command sqliterelayd is one node of a sqliterelay cluster: it campaigns
// for leadership of its configured database and serves either as the
// SQLite-owning leader or as a follower relaying requests to whichever node
// wins.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	u "github.com/araddon/gou"

	"github.com/dataux/sqliterelay/config"
	"github.com/dataux/sqliterelay/conn"
)

var (
	configFile = flag.String("config", "sqliterelayd.conf", "sqliterelayd config file")
	logLevel   = flag.String("loglevel", "info", "log level [debug|info|warn|error]")
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	flag.Parse()

	if len(*configFile) == 0 {
		u.Errorf("must use a config file")
		os.Exit(1)
	}

	conf, err := config.LoadDaemonConfigFromFile(*configFile)
	if err != nil {
		u.Errorf("could not load config: %v", err)
		os.Exit(1)
	}

	level := *logLevel
	if !flagPassed("loglevel") && conf.LogLevel != "" {
		level = conf.LogLevel
	}
	u.SetupLogging(level)
	u.SetColorIfTerminal()

	if len(conf.Etcd) == 0 {
		u.Errorf("config: etcd endpoints must not be empty")
		os.Exit(1)
	}

	ctrl, err := conn.New(conn.Config{
		SelfAddr:       conf.SelfAddr,
		ListenAddr:     conf.ListenAddr,
		SQLitePath:     conf.SQLitePath,
		ElectionKey:    conf.ElectionKey,
		EtcdEndpoints:  conf.Etcd,
		DefaultTimeout: time.Duration(conf.DefaultTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		u.Errorf("could not start controller: %v", err)
		os.Exit(1)
	}
	ctrl.Start()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	sig := <-sc
	u.Infof("got signal [%v], shutting down", sig)
	ctrl.Close()
	fmt.Fprintf(os.Stderr, "sqliterelayd: stopped (%v)\n", sig)
}

func flagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
