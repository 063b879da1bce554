package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"eryon/internal/config"
	"eryon/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", config.Default().SocketPath, "Control socket of a running eryon")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: eryon-ctl [-s socket] live | stop | mode <name>")
		cli.PrintDefaults()
	}
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	msg := ipc.ControlMessage{Cmd: args[0]}
	switch msg.Cmd {
	case ipc.CmdLive, ipc.CmdStop:
	case ipc.CmdMode:
		if len(args) < 2 {
			cli.Usage()
			os.Exit(2)
		}
		msg.Arg = args[1]
	default:
		cli.Usage()
		os.Exit(2)
	}

	if err := ipc.Send(*socket, msg); err != nil {
		fmt.Println("eryon:", err)
		os.Exit(1)
	}
}
