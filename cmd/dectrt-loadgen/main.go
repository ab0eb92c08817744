// Command dectrt-loadgen feeds a running dectrtd's ingress socket with
// datagrams at a configurable interval, then polls the control-plane
// service for the resulting datagram/job counts — exercising the job
// throttling behavior described for IngressServer.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/maxpenner/dectrt/internal/controlplane/controlplanepb"
)

// Cmd is the command line arguments.
type Cmd struct {
	TargetAddr       string
	ControlPlaneAddr string
	Count            int
	IntervalUS       int64
	PayloadBytes     int
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "dectrt-loadgen",
	Short: "Feed an ingress socket with datagrams and report resulting queue counters",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVar(&cmd.TargetAddr, "target", "127.0.0.1:9100", "Ingress UDP address to send datagrams to")
	rootCmd.Flags().StringVar(&cmd.ControlPlaneAddr, "control-plane", "127.0.0.1:9101", "Control plane gRPC address")
	rootCmd.Flags().IntVar(&cmd.Count, "count", 1000, "Number of datagrams to send")
	rootCmd.Flags().Int64Var(&cmd.IntervalUS, "interval-us", 1000, "Interval between datagrams in microseconds")
	rootCmd.Flags().IntVar(&cmd.PayloadBytes, "payload-bytes", 64, "Datagram payload size in bytes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	raddr, err := net.ResolveUDPAddr("udp", cmd.TargetAddr)
	if err != nil {
		return fmt.Errorf("dectrt-loadgen: resolve %s: %w", cmd.TargetAddr, err)
	}

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("dectrt-loadgen: dial %s: %w", cmd.TargetAddr, err)
	}
	defer conn.Close()

	interval := time.Duration(cmd.IntervalUS) * time.Microsecond
	if err := feed(conn, cmd.Count, cmd.PayloadBytes, interval); err != nil {
		return fmt.Errorf("dectrt-loadgen: feed: %w", err)
	}

	counters, err := fetchCounters(cmd.ControlPlaneAddr)
	if err != nil {
		return fmt.Errorf("dectrt-loadgen: fetch counters: %w", err)
	}

	fmt.Printf("sent %d datagrams: ingress_datagrams=%d ingress_jobs=%d job_queue_discards=%d\n",
		cmd.Count, counters.GetIngressDatagrams(), counters.GetIngressJobs(), counters.GetJobQueueDiscards())

	return nil
}

// feed sends count datagrams of payloadBytes size, spaced by interval,
// matching spec.md §8 scenario 5's "datagrams at fixed intervals" shape.
func feed(conn *net.UDPConn, count, payloadBytes int, interval time.Duration) error {
	payload := make([]byte, payloadBytes)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("fill payload: %w", err)
	}

	for i := 0; i < count; i++ {
		if _, err := conn.Write(payload); err != nil {
			return fmt.Errorf("send datagram %d: %w", i, err)
		}
		if i < count-1 {
			time.Sleep(interval)
		}
	}
	return nil
}

func fetchCounters(addr string) (*controlplanepb.Counters, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to control plane %s: %w", addr, err)
	}
	defer conn.Close()

	client := controlplanepb.NewControlPlaneClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return client.GetCounters(ctx, &controlplanepb.GetCountersRequest{})
}
