// Command dectrtd runs the real-time I/Q transport core: it negotiates a
// radio device, brings up its TX/RX threads, serves ingress connections,
// and exposes the control-plane introspection service over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/maxpenner/dectrt/internal/config"
	"github.com/maxpenner/dectrt/internal/controlplane"
	"github.com/maxpenner/dectrt/internal/controlplane/controlplanepb"
	"github.com/maxpenner/dectrt/internal/dgramqueue"
	"github.com/maxpenner/dectrt/internal/hw"
	"github.com/maxpenner/dectrt/internal/hwsim"
	"github.com/maxpenner/dectrt/internal/ingress"
	"github.com/maxpenner/dectrt/internal/jobqueue"
	"github.com/maxpenner/dectrt/internal/logging"
	"github.com/maxpenner/dectrt/internal/ppssync"
	"github.com/maxpenner/dectrt/internal/xcmd"
)

// antStreamsLengthSamples sizes the TX pool's and RX ring's per-antenna
// buffers. InitializeRxRing enforces its minimum-length invariant against
// the configured nof_new_samples_max; InitializeTxPool checks no minimum.
// One generous constant serves both.
const antStreamsLengthSamples = 1 << 20

// nofTxBuffers is the depth of the TX buffer pool: enough in-flight bursts
// to absorb scheduling jitter from upper PHY layers without stalling them.
const nofTxBuffers = 8

// maxPacketSamples bounds a single TX thread Send call, matching the
// chunking granularity real hardware APIs typically impose.
const maxPacketSamples = 4096

// txBusyWaitTimeout bounds how long the TX thread busy-waits for the next
// expected buffer before re-checking shutdown.
const txBusyWaitTimeout = 20 * time.Millisecond

// Cmd is the command line arguments.
type Cmd struct {
	ConfigPath string
}

var cmd Cmd

var rootCmd = &cobra.Command{
	Use:   "dectrtd",
	Short: "DECT-2020 NR real-time I/Q transport core",
	Run: func(rawCmd *cobra.Command, args []string) {
		if err := run(cmd); err != nil {
			var interrupted xcmd.Interrupted
			if errors.As(err, &interrupted) {
				return
			}
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "Path to the configuration file (required)")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd Cmd) error {
	cfg, err := config.LoadConfig(cmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("dectrtd: load config: %w", err)
	}

	log, _, err := logging.Init(&logging.Config{Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("dectrtd: init logging: %w", err)
	}
	defer log.Sync()

	a, err := newApp(cfg, log)
	if err != nil {
		return fmt.Errorf("dectrtd: build app: %w", err)
	}

	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.orchestrator.Run(ctx) })
	g.Go(func() error { return a.ingress.Run(ctx) })
	g.Go(func() error {
		log.Infow("control plane listening", "addr", a.controlPlaneListener.Addr())
		return a.grpcServer.Serve(a.controlPlaneListener)
	})
	g.Go(func() error {
		err := xcmd.WaitInterrupted(ctx)
		log.Infow("caught signal", "error", err)
		a.device.Stop()
		a.grpcServer.GracefulStop()
		return err
	})

	var result *multierror.Error
	result = multierror.Append(result, g.Wait())

	if joinErr := a.device.Join(5 * time.Second); joinErr != nil {
		result = multierror.Append(result, fmt.Errorf("device join: %w", joinErr))
	}

	return result.ErrorOrNil()
}

// app is the composition root: every long-lived component the process
// owns, wired together once at startup. Grounded on the teacher's
// yncp.Director pattern of a single struct holding every subsystem handle,
// built by one run function instead of scattering construction across the
// call sites that need each piece.
type app struct {
	device       hw.Device
	orchestrator *hw.Orchestrator
	ingress      *ingress.Server
	ppsSync      *ppssync.Sync

	grpcServer           *grpc.Server
	controlPlaneListener net.Listener
}

func newApp(cfg *config.Config, log *zap.SugaredLogger) (*app, error) {
	dev, err := bringUpDevice(cfg)
	if err != nil {
		return nil, fmt.Errorf("bring up device: %w", err)
	}

	pps := ppssync.New(ppsSyncMode(cfg.PpsSync.Mode), log)
	for i := uint32(0); i < cfg.PpsSync.NofParticipants; i++ {
		pps.ExpectOneMore()
	}
	if err := pps.SyncProcedure(dev); err != nil {
		return nil, fmt.Errorf("pps rendezvous: %w", err)
	}

	jobQueue := newJobQueue(cfg)
	jobQueue.SetPermeable(true)

	counters := &controlplane.Counters{}

	orch := hw.NewOrchestrator(dev, jobQueue, hw.OrchestratorConfig{
		Tx: hw.TxThreadConfig{MaxPacketSamples: maxPacketSamples, BusyWaitTimeout: txBusyWaitTimeout},
		Rx: hw.RxThreadConfig{WorkerID: 0, EnqueueFatal: cfg.Queues.JobQueueEnqueueFatal, DiscardCounter: counters},
	}, log)

	conns, err := buildConnections(cfg)
	if err != nil {
		return nil, fmt.Errorf("build ingress connections: %w", err)
	}

	ingressSrv := ingress.New(conns, jobQueue, ingress.Config{
		QueueSize:                dgramqueue.Size{NDatagram: cfg.Queues.NDatagram, NDatagramMaxByte: uint32(cfg.Queues.NDatagramMaxByte)},
		JobQueueAccessProtection: cfg.Queues.JobQueueAccessProtection,
	}, log)

	dgramQueues := make([]*dgramqueue.Queue, len(conns))
	for i := range conns {
		dgramQueues[i] = ingressSrv.Queue(i)
	}

	grpcServer := grpc.NewServer()
	svc := controlplane.New(jobQueue, dgramQueues, dev.TxPool(), dev.RxRing(), orch, pps, ingressSrv, counters, log)
	controlplanepb.RegisterControlPlaneServer(grpcServer, svc)

	listener, err := net.Listen("tcp", cfg.ControlPlane.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.ControlPlane.ListenAddr, err)
	}

	if err := dev.StartThreadsAndIQStreaming(); err != nil {
		return nil, fmt.Errorf("start iq streaming: %w", err)
	}

	return &app{
		device:               dev,
		orchestrator:         orch,
		ingress:              ingressSrv,
		ppsSync:              pps,
		grpcServer:           grpcServer,
		controlPlaneListener: listener,
	}, nil
}

func bringUpDevice(cfg *config.Config) (hw.Device, error) {
	if !cfg.Hardware.Simulate {
		return nil, fmt.Errorf("no real hardware backend is built into this binary; set hardware.simulate: true")
	}

	dev := hwsim.New(hwsim.Config{
		NofAntennasMax:    cfg.Hardware.AntennaCount,
		SampleRateSpeedup: cfg.Hardware.SampleRateSpeedup,
		NofNewSamplesMax:  maxPacketSamples,
	})

	if err := dev.SetAntennaCount(cfg.Hardware.AntennaCount); err != nil {
		return nil, fmt.Errorf("set antenna count: %w", err)
	}
	if _, err := dev.SetSampleRate(cfg.Hardware.SampleRateHz); err != nil {
		return nil, fmt.Errorf("set sample rate: %w", err)
	}
	dev.SetTxGapSamples(cfg.Hardware.TxGapSamples)

	if err := dev.InitializeTxPool(nofTxBuffers, antStreamsLengthSamples); err != nil {
		return nil, fmt.Errorf("initialize tx pool: %w", err)
	}
	if err := dev.InitializeRxRing(antStreamsLengthSamples); err != nil {
		return nil, fmt.Errorf("initialize rx ring: %w", err)
	}
	if err := dev.InitializeDevice(); err != nil {
		return nil, fmt.Errorf("initialize device: %w", err)
	}
	if _, err := dev.SetFreq(hw.DefaultFreqHz); err != nil {
		return nil, fmt.Errorf("set freq: %w", err)
	}

	return dev, nil
}

func ppsSyncMode(mode string) ppssync.Mode {
	if mode == "tai_now" {
		return ppssync.ModeTAINow
	}
	return ppssync.ModeZero
}

func newJobQueue(cfg *config.Config) jobqueue.Queue {
	if cfg.Queues.JobQueueBackend == "concurrent" {
		return jobqueue.NewConcurrent(cfg.Queues.JobQueueCapacity)
	}
	return jobqueue.NewNaive(cfg.Queues.JobQueueCapacity)
}

func buildConnections(cfg *config.Config) ([]ingress.Connection, error) {
	conns := make([]ingress.Connection, 0, len(cfg.Ingress.Connections))
	for _, c := range cfg.Ingress.Connections {
		switch c.Kind {
		case "udp":
			conn, err := ingress.NewUDPConnection(ingress.UDPConfig{
				Name:           c.Addr,
				Addr:           c.Addr,
				AllowedSources: c.AllowedSources,
			})
			if err != nil {
				return nil, err
			}
			conns = append(conns, conn)
		case "tun":
			conn, err := ingress.NewTUNConnection(ingress.TUNConfig{
				Name:      c.Addr,
				Namespace: c.Namespace,
			})
			if err != nil {
				return nil, err
			}
			conns = append(conns, conn)
		default:
			return nil, fmt.Errorf("unknown ingress connection kind %q", c.Kind)
		}
	}
	return conns, nil
}
