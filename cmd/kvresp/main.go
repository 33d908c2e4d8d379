// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/xtaci/kvresp"
)

// VERSION is populated via build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		// Enable timestamps + file:line to simplify debugging self-built binaries.
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "kvresp"
	myApp.Usage = "in-memory key-value store with a RESP-compatible wire protocol"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "listen,l",
			Value: ":6379",
			Usage: "listen address, eg: \"127.0.0.1:6379\"",
		},
		cli.IntFlag{
			Name:  "maxconnections",
			Value: 250,
			Usage: "maximum number of concurrently served connections",
		},
		cli.IntFlag{
			Name:  "acceptbackoff",
			Value: 64,
			Usage: "ceiling, in seconds, for exponential backoff on transient accept errors",
		},
		cli.IntFlag{
			Name:  "statsperiod",
			Value: 0,
			Usage: "seconds between stats log lines, 0 disables",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.Listen = c.String("listen")
		config.MaxConnections = c.Int("maxconnections")
		config.AcceptBackoff = c.Int("acceptbackoff")
		config.StatsPeriod = c.Int("statsperiod")
		config.Log = c.String("log")

		if c.String("c") != "" {
			// Only JSON configuration files are supported at the moment.
			err := parseJSONConfig(&config, c.String("c"))
			checkError(err)
		}

		if config.MaxConnections <= 0 {
			color.Red("maxconnections %d is invalid, falling back to 250", config.MaxConnections)
			config.MaxConnections = 250
		}

		if config.Log != "" {
			f, err := os.OpenFile(config.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			checkError(err)
			defer f.Close()
			log.SetOutput(f)
		}

		log.Println("version:", VERSION)
		log.Println("listening on:", config.Listen)
		log.Println("maxconnections:", config.MaxConnections)
		log.Println("acceptbackoff:", config.AcceptBackoff)
		log.Println("statsperiod:", config.StatsPeriod)

		ln, err := net.Listen("tcp", config.Listen)
		checkError(err)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := []kvresp.Option{
			kvresp.WithMaxConnections(config.MaxConnections),
			kvresp.WithAcceptBackoffCeiling(time.Duration(config.AcceptBackoff) * time.Second),
		}
		if config.StatsPeriod > 0 {
			opts = append(opts, kvresp.WithStatsInterval(time.Duration(config.StatsPeriod)*time.Second))
		}

		return kvresp.Run(ctx, ln, opts...)
	}
	myApp.Run(os.Args)
}

func checkError(err error) {
	if err != nil {
		color.Red("%+v\n", err)
		os.Exit(-1)
	}
}
