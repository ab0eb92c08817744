// Command dectrt-rtt is a diagnostic RTT probe: it sends datagrams to a
// peer implementing the RTT wire format (echoed verification bytes plus an
// appended round-trip-nanoseconds trailer) and exports each measurement
// batch to a JSON file in the working directory.
package main

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/cobra"

	"github.com/maxpenner/dectrt/internal/rttwire"
)

// Cmd is the command line arguments.
type Cmd struct {
	Addr                 string
	Tag                  string
	IntervalUS           int64
	MeasurementsPerPrint int
	TimeoutUS            int64
	RequestLen           int
	OutDir               string
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "dectrt-rtt",
	Short: "Diagnostic round-trip-time probe against an RTT echo peer",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&cmd.Addr, "addr", "127.0.0.1:8050", "Address of the RTT echo peer")
	rootCmd.Flags().StringVar(&cmd.Tag, "tag", "mac2mac", "Tag embedded in exported JSON file names")
	rootCmd.Flags().Int64VarP(&cmd.IntervalUS, "interval", "i", 1_000_000, "Transmission interval in microseconds")
	rootCmd.Flags().IntVar(&cmd.MeasurementsPerPrint, "measurements-per-print", 3, "Number of samples per exported batch")
	rootCmd.Flags().Int64Var(&cmd.TimeoutUS, "timeout-us", 100_000, "Receive timeout in microseconds before a probe counts as an error")
	rootCmd.Flags().IntVar(&cmd.RequestLen, "request-len", 64, "Request length in bytes")
	rootCmd.Flags().StringVar(&cmd.OutDir, "out-dir", ".", "Directory JSON batches are written into")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	if cmd.RequestLen < rttwire.MinRequestLen || cmd.RequestLen > rttwire.MaxRequestLen {
		return fmt.Errorf("dectrt-rtt: request-len %d out of bounds [%d, %d]", cmd.RequestLen, rttwire.MinRequestLen, rttwire.MaxRequestLen)
	}

	raddr, err := net.ResolveUDPAddr("udp", cmd.Addr)
	if err != nil {
		return fmt.Errorf("dectrt-rtt: resolve %s: %w", cmd.Addr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dectrt-rtt: dial %s: %w", cmd.Addr, err)
	}
	defer conn.Close()

	prober := &prober{
		conn:       conn,
		timeout:    time.Duration(cmd.TimeoutUS) * time.Microsecond,
		requestLen: cmd.RequestLen,
	}

	interval := time.Duration(cmd.IntervalUS) * time.Microsecond
	samples := make([]int64, 0, cmd.MeasurementsPerPrint)
	batchCounter := 0

	failureBackoff := backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         interval,
	}
	failureBackoff.Reset()

	for {
		elapsedNanos, err := prober.probeOnce()
		if err != nil {
			fmt.Printf("WARNING: rtt probe failed: %v\n", err)
			time.Sleep(failureBackoff.NextBackOff())
			continue
		}
		failureBackoff.Reset()

		samples = append(samples, elapsedNanos)
		if len(samples) < cmd.MeasurementsPerPrint {
			time.Sleep(interval)
			continue
		}

		batch := rttwire.NewBatch(cmd.Tag, batchCounter, samples)
		if err := batch.Export(cmd.OutDir); err != nil {
			return fmt.Errorf("dectrt-rtt: export batch: %w", err)
		}
		fmt.Printf("rtt %s: %v (total %d ns)\n", cmd.Tag, samples, batch.ElapsedTotalNs)

		batchCounter++
		samples = samples[:0]
		time.Sleep(interval)
	}
}

// prober sends one RTT request per call and extracts the peer-reported
// round-trip-nanoseconds trailer from the response.
type prober struct {
	conn       *net.UDPConn
	timeout    time.Duration
	requestLen int
}

func (p *prober) probeOnce() (int64, error) {
	req := make([]byte, p.requestLen)
	if _, err := rand.Read(req); err != nil {
		return 0, fmt.Errorf("fill request: %w", err)
	}

	if _, err := p.conn.Write(req); err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}

	if err := p.conn.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	resp := make([]byte, p.requestLen+8)
	n, err := p.conn.Read(resp)
	if err != nil {
		return 0, fmt.Errorf("recv response: %w", err)
	}

	verification, trailer, err := rttwire.ParseResponse(resp[:n])
	if err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}
	for i := range verification {
		if verification[i] != req[i] {
			return 0, fmt.Errorf("verification mismatch at byte %d", i)
		}
	}

	return trailer.ElapsedNanos, nil
}
