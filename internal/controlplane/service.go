// Package controlplane implements the gRPC introspection service exposing
// queue depths, PPS rendezvous status, and operational counters. Grounded
// on modules/pdump/controlplane/service.go's shape: a single struct holding
// references to the components it reports on, constructed once at startup and registered on a *grpc.Server, with every RPC
// assembling its response by polling the live component state rather than
// having state pushed to it from the hot path.
package controlplane

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/maxpenner/dectrt/internal/controlplane/controlplanepb"
	"github.com/maxpenner/dectrt/internal/dgramqueue"
	"github.com/maxpenner/dectrt/internal/hw"
	"github.com/maxpenner/dectrt/internal/jobqueue"
	"github.com/maxpenner/dectrt/internal/ppssync"
	"github.com/maxpenner/dectrt/internal/rxring"
	"github.com/maxpenner/dectrt/internal/txpool"
)

// Counters accumulates operational counters that have no natural owner of
// their own to poll, namely jobs dropped by the discard resource policy
// (see hw's enqueueWithPolicy). Every other counter this service
// reports is polled live from the component that already tracks it.
type Counters struct {
	mu               sync.Mutex
	jobQueueDiscards int64
}

// AddJobQueueDiscard records one job dropped by the discard resource
// policy. Called from the RX thread hot path, so it must stay cheap.
func (c *Counters) AddJobQueueDiscard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobQueueDiscards++
}

func (c *Counters) snapshot() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobQueueDiscards
}

// ingressSource is the subset of ingress.Server the control plane polls for
// cumulative datagram/job counts. Kept local to avoid importing the ingress
// package just for this one accessor pair.
type ingressSource interface {
	Counters() (datagrams, jobs int64)
}

// Service implements controlplanepb.ControlPlaneServer. It holds references
// to the live components it reports on, not copies, and takes no lock of
// its own beyond what those components already expose: every RPC is a
// read-only poll assembled on demand.
type Service struct {
	controlplanepb.UnimplementedControlPlaneServer

	log *zap.SugaredLogger

	jobQueue     jobqueue.Queue
	dgramQueues  []*dgramqueue.Queue
	txPool       *txpool.Pool
	rxRing       *rxring.Buffer
	orchestrator *hw.Orchestrator
	ppsSync      *ppssync.Sync
	ingress      ingressSource
	counters     *Counters
}

// New constructs a Service. dgramQueues should be given in the same order
// as the ingress server's connections, so QueueDepths' datagram slices line
// up positionally with them. txPool, rxRing, orch, pps and ingress may each
// be nil, in which case the RPCs reporting on them return zero values
// instead of erroring, so a deployment that omits one component (e.g. no
// PPS participants configured) still serves the rest.
func New(jobQueue jobqueue.Queue, dgramQueues []*dgramqueue.Queue, txPool *txpool.Pool, rxRing *rxring.Buffer, orch *hw.Orchestrator, pps *ppssync.Sync, ingress ingressSource, counters *Counters, log *zap.SugaredLogger) *Service {
	return &Service{
		log:          log,
		jobQueue:     jobQueue,
		dgramQueues:  dgramQueues,
		txPool:       txPool,
		rxRing:       rxRing,
		orchestrator: orch,
		ppsSync:      pps,
		ingress:      ingress,
		counters:     counters,
	}
}

func (s *Service) GetQueueDepths(ctx context.Context, _ *controlplanepb.GetQueueDepthsRequest) (*controlplanepb.QueueDepths, error) {
	used := make([]int64, len(s.dgramQueues))
	capacities := make([]int64, len(s.dgramQueues))
	for i, q := range s.dgramQueues {
		used[i] = int64(q.Used())
		capacities[i] = int64(q.Capacity())
	}

	return &controlplanepb.QueueDepths{
		JobQueueUsed:          int64(s.jobQueue.Len()),
		JobQueueCapacity:      int64(s.jobQueue.Capacity()),
		DatagramQueueUsed:     used,
		DatagramQueueCapacity: capacities,
	}, nil
}

func (s *Service) GetPPSStatus(ctx context.Context, _ *controlplanepb.GetPPSStatusRequest) (*controlplanepb.PPSStatus, error) {
	if s.ppsSync == nil {
		return &controlplanepb.PPSStatus{}, nil
	}
	expected, registered, synced, lastSync := s.ppsSync.Status()
	return &controlplanepb.PPSStatus{
		Synced:                 synced,
		ParticipantsExpected:   expected,
		ParticipantsRegistered: registered,
		LastSyncUnixNano:       lastSync,
	}, nil
}

func (s *Service) GetCounters(ctx context.Context, _ *controlplanepb.GetCountersRequest) (*controlplanepb.Counters, error) {
	var txTimeouts, rxSnaps, discards, datagrams, jobs int64
	if s.counters != nil {
		discards = s.counters.snapshot()
	}
	if s.txPool != nil {
		_, failed := s.txPool.AcquireStats()
		txTimeouts += failed
	}
	if s.rxRing != nil {
		rxSnaps += s.rxRing.JitterSnaps()
	}
	if s.ingress != nil {
		datagrams, jobs = s.ingress.Counters()
	}

	return &controlplanepb.Counters{
		TxAcquireTimeouts: txTimeouts,
		RxJitterSnaps:     rxSnaps,
		JobQueueDiscards:  discards,
		IngressDatagrams:  datagrams,
		IngressJobs:       jobs,
	}, nil
}
