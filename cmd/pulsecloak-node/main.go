// Command pulsecloak-node accepts inbound connections, feeds their
// bytes through a per-connection-class Discriminator, and logs every
// UnmaskedChunk it delivers. It stands in for the routing layer,
// cryptographic directory, and onion-hop logic that are out of scope
// for this repository's core: those consumers would take the
// UnmaskedChunk stream this binary only logs.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pulsecloak/pulsecloak-node/classconfig"
	"github.com/pulsecloak/pulsecloak-node/discriminator"
	"github.com/pulsecloak/pulsecloak-node/pulselog"
)

var (
	listenAddr = flag.String("listen", "127.0.0.1:4045", "address to accept inbound connections on")
	classLine  = flag.String("class", "class=default;codec=json,null;framer=length", "connection-class descriptor for every accepted connection")
	logFile    = flag.String("log-file", "", "path to write logs to; empty means stderr")
)

func main() {
	flag.Parse()

	var sink *os.File
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pulsecloak-node: could not open log file: %v\n", err)
			os.Exit(1)
		}
		sink = f
		pulselog.SetOutput(f)
		defer f.Close()
	}

	logger := pulselog.NewProcessLogger()

	desc, err := classconfig.Parse(*classLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsecloak-node: invalid -class descriptor: %v\n", err)
		os.Exit(1)
	}

	reg := classconfig.NewRegistry(nil)
	if err := reg.Register(*classLine, "", logger); err != nil {
		fmt.Fprintf(os.Stderr, "pulsecloak-node: invalid -class descriptor: %v\n", err)
		os.Exit(1)
	}
	factory, _ := reg.Factory(desc.Class)

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pulsecloak-node: could not listen on %s: %v\n", *listenAddr, err)
		os.Exit(1)
	}
	defer ln.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		ln.Close()
		if sink != nil {
			sink.Close()
		}
		os.Exit(0)
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Error("pulsecloak-node", "accept failed: %v", err)
			return
		}
		wg.Add(1)
		perConnFactory := factory.Duplicate()
		go func() {
			defer wg.Done()
			handleConn(conn, perConnFactory, logger)
		}()
	}
}

// handleConn pumps bytes from conn into a fresh Discriminator and
// logs every delivered UnmaskedChunk, exercising exactly the
// lower-layer backpressure contract and upper-layer consumer role
// spec.md describes as external: read until TakeChunk stops
// returning a chunk, then read more.
func handleConn(conn net.Conn, factory discriminator.Factory, logger pulselog.Logger) {
	defer conn.Close()

	d := factory.Make()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			d.AddData(buf[:n])
			for {
				chunk, ok := d.TakeChunk()
				if !ok {
					break
				}
				logger.Info("pulsecloak-node",
					"delivered %d bytes from %s (last=%v sequenced=%v)",
					len(chunk.Payload), conn.RemoteAddr(), chunk.LastChunk, chunk.Sequenced)
			}
		}
		if err != nil {
			return
		}
	}
}
