// usblog-capture reads the raw log byte stream a device forwards over its
// USB serial port and writes it to stdout or a file. It does not decode
// frames; pipe the output into whatever decoder matches the device's log
// encoder.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"usblog/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate (ignored for USB CDC)")
	output  = flag.String("output", "", "Write captured bytes to this file instead of stdout")
	hexdump = flag.Bool("hexdump", false, "Write a hex dump instead of raw bytes")
	verbose = flag.Bool("verbose", false, "Report capture progress on stderr")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	cfg.ReadTimeout = 0 // block until data arrives

	port, err := serial.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer port.Close()

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	if *hexdump {
		dumper := hex.Dumper(out)
		defer dumper.Close()
		out = dumper
	}

	// Close the port on interrupt so the blocking read returns.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		port.Close()
	}()

	if *verbose {
		fmt.Fprintf(os.Stderr, "Capturing from %s\n", *device)
	}

	total, err := io.Copy(out, port)
	if *verbose {
		fmt.Fprintf(os.Stderr, "Captured %d bytes\n", total)
	}
	if err != nil && err != io.EOF && !errors.Is(err, os.ErrClosed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
