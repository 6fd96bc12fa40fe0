//
// Copyright 2019-2020 Nestybox, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	systemd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/docker/docker/client"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/nestybox/beacon/batch"
	"github.com/nestybox/beacon/capname"
	"github.com/nestybox/beacon/catalogue"
	"github.com/nestybox/beacon/resultstore"
	"github.com/nestybox/beacon/rtclient"
	"github.com/nestybox/beacon/rtevents"
	"github.com/nestybox/beacon/session"
)

const usage string = `beacon syscall/capability profiler

beacon watches one or many containers from the outside, records every
syscall and capability check they trigger over a sampling window, and
writes back the minimal set a least-privilege seccomp/capability profile
would need to allow.
`

// Globals to be populated at build time during Makefile processing.
var (
	version  string
	commitId string
	builtAt  string
	builtBy  string
)

// exitHandler performs graceful shutdown on receipt of a termination
// signal: it notifies systemd the process is stopping, gives any
// in-flight sample a moment to finish, and exits.
func exitHandler(signalChan chan os.Signal) {
	s := <-signalChan
	logrus.Warnf("beacon caught signal: %s", s)
	logrus.Info("Stopping (gracefully) ...")

	systemd.SdNotify(false, systemd.SdNotifyStopping)

	time.Sleep(500 * time.Millisecond)
	logrus.Info("Exiting ...")
	os.Exit(0)
}

func setupLogging(ctx *cli.Context) error {
	if path := ctx.GlobalString("log"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0666)
		if err != nil {
			return fmt.Errorf("error opening log file %v: %v", path, err)
		}
		logrus.SetOutput(f)
		log.SetOutput(f)
	} else {
		logrus.SetOutput(os.Stderr)
		log.SetOutput(os.Stderr)
	}

	if logFormat := ctx.GlobalString("log-format"); logFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	switch logLevel := ctx.GlobalString("log-level"); logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info", "":
		logrus.SetLevel(logrus.InfoLevel)
	case "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	default:
		return fmt.Errorf("log-level option %q not recognized", logLevel)
	}
	return nil
}

func newDockerClient() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

func runMonitor(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: beacon monitor <image>")
	}
	image := ctx.Args().Get(0)
	duration := time.Duration(ctx.GlobalInt("duration")) * time.Second

	dockerCli, err := newDockerClient()
	if err != nil {
		return fmt.Errorf("failed to reach container runtime: %v", err)
	}
	defer dockerCli.Close()

	demux := rtevents.New()
	demux.Start(context.Background(), dockerCli)

	sess := session.New(duration)
	if err := sess.Start(context.Background()); err != nil {
		return err
	}

	container, err := rtclient.New(context.Background(), dockerCli, demux, image, rtclient.ContainerSpec{})
	if err != nil {
		return err
	}
	defer container.Remove(context.Background())

	if err := container.Start(context.Background()); err != nil {
		return err
	}

	if err := sess.Notify(container); err != nil {
		return err
	}

	logrus.Infof("sampling %s for %s ...", image, duration)
	snap, err := sess.GetResult()
	if err != nil {
		return err
	}
	if snap == nil {
		logrus.Warnf("no data recorded for %s", image)
		return nil
	}

	logrus.Infof("syscalls observed: %d, capabilities observed: %d", len(snap.Syscalls), len(snap.Capabilities))
	fmt.Printf("syscalls: %v\ncapabilities: %v\nseccomp_flag: %v\n", snap.Syscalls, capname.Names(snap.Capabilities), snap.SeccompFlag)
	return nil
}

func runBatch(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: beacon batch <catalogue.json>")
	}
	cataloguePath := ctx.Args().Get(0)
	resultDir := ctx.GlobalString("result-dir")
	duration := time.Duration(ctx.GlobalInt("duration")) * time.Second

	cat, err := catalogue.Load(cataloguePath)
	if err != nil {
		return err
	}
	logrus.Infof("loaded %d catalogue entries from %s", cat.Len(), cataloguePath)

	store := resultstore.New(resultDir)

	dockerCli, err := newDockerClient()
	if err != nil {
		return fmt.Errorf("failed to reach container runtime: %v", err)
	}
	defer dockerCli.Close()

	demux := rtevents.New()
	demux.Start(context.Background(), dockerCli)

	driver := batch.New(cat, store, dockerCli, demux, duration)
	return driver.Run(context.Background())
}

func main() {
	app := cli.NewApp()
	app.Name = "beacon"
	app.Usage = usage
	app.Version = version

	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "duration",
			Value: 60,
			Usage: "sampling window, in seconds",
		},
		cli.StringFlag{
			Name:  "result-dir",
			Value: "result",
			Usage: "directory batch mode reads and writes result files in",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "log file path or empty string for stderr output (default: \"\")",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log categories to include (debug, info, warning, error, fatal)",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log format; must be json or text",
		},
	}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("beacon\n\tversion: \t%s\n\tcommit: \t%s\n\tbuilt at: \t%s\n\tbuilt by: \t%s\n",
			c.App.Version, commitId, builtAt, builtBy)
	}

	app.Before = func(ctx *cli.Context) error {
		if os.Geteuid() != 0 {
			fmt.Println("Run as super user")
			os.Exit(0)
		}
		if err := setupLogging(ctx); err != nil {
			return err
		}

		exitChan := make(chan os.Signal, 1)
		signal.Notify(exitChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go exitHandler(exitChan)

		systemd.SdNotify(false, systemd.SdNotifyReady)
		return nil
	}

	app.Commands = []cli.Command{
		{
			Name:      "monitor",
			Usage:     "sample a single container image",
			ArgsUsage: "<image>",
			Action:    runMonitor,
		},
		{
			Name:      "batch",
			Usage:     "sample every catalogue entry not already recorded",
			ArgsUsage: "<catalogue.json>",
			Action:    runBatch,
		},
	}

	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
