// Command dirmid is a small demo harness wiring the channel and dispatch
// packages together over a real TCP socket, in the idiom of kryptco-kr's
// paired krd/ctl command binaries (daemon subcommand + manual protocol-level
// client subcommand, both built on the same urfave/cli app).
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/op/go-logging"
	"github.com/urfave/cli"

	"github.com/bluelightning32/Dirmi/channel"
)

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{level:.4s} %{module} ▶ %{message}`,
)

func setupLogging() {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, stderrFormat)
	logging.SetBackend(formatted)
}

func main() {
	setupLogging()

	app := cli.NewApp()
	app.Name = "dirmid"
	app.Usage = "Dirmi demo: serve a Calculator remote object, or call one"
	app.Commands = []cli.Command{
		serveCommand(),
		callCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() cli.Command {
	return cli.Command{
		Name:  "serve",
		Usage: "accept connections and dispatch calls against a Calculator",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "addr", Value: "127.0.0.1:7651"},
			cli.Int64Flag{Name: "pool", Value: 100, Usage: "max concurrent accept/dispatch workers"},
		},
		Action: func(c *cli.Context) error {
			listener, err := net.Listen("tcp", c.String("addr"))
			if err != nil {
				return err
			}
			defer listener.Close()
			log.Infof("listening on %s", listener.Addr())

			pool := channel.NewPool(c.Int64("pool"))
			srv := newServer(listener, pool, newCalculatorImpl())
			if err := srv.serve(); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Info("shutting down")
			return nil
		},
	}
}

func callCommand() cli.Command {
	return cli.Command{
		Name:  "call",
		Usage: "invoke one method on a running dirmid",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "addr", Value: "127.0.0.1:7651"},
		},
		Subcommands: []cli.Command{
			{
				Name:      "add",
				ArgsUsage: "A B",
				Action:    callInts("Add"),
			},
			{
				Name:      "divide",
				ArgsUsage: "A B",
				Action:    callInts("Divide"),
			},
			{
				Name:   "ready",
				Action: callNoArgs("IsReady"),
			},
			{
				Name:      "log",
				ArgsUsage: "MESSAGE",
				Action: func(c *cli.Context) error {
					return runCall(c, "Log", []interface{}{c.Args().First()})
				},
			},
			{
				Name:      "log-checked",
				ArgsUsage: "MESSAGE",
				Action: func(c *cli.Context) error {
					return runCall(c, "LogChecked", []interface{}{c.Args().First()})
				},
			},
		},
	}
}

func callInts(method string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 2 {
			return fmt.Errorf("%s takes exactly 2 integer arguments", method)
		}
		a, err := strconv.ParseInt(c.Args().Get(0), 10, 32)
		if err != nil {
			return err
		}
		b, err := strconv.ParseInt(c.Args().Get(1), 10, 32)
		if err != nil {
			return err
		}
		return runCall(c, method, []interface{}{int32(a), int32(b)})
	}
}

func callNoArgs(method string) cli.ActionFunc {
	return func(c *cli.Context) error {
		return runCall(c, method, nil)
	}
}

func runCall(c *cli.Context, method string, args []interface{}) error {
	addr := c.Parent().String("addr")
	v, err := callRemote(context.Background(), addr, method, args)
	if err != nil {
		return err
	}
	fmt.Println(formatResult(v))
	return nil
}
