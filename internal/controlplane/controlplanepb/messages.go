// Package controlplanepb defines the request/response messages and the
// gRPC service description for the introspection service.
//
// A real deployment of this service would generate these types with
// protoc-gen-go/protoc-gen-go-grpc from a .proto source, the way
// controlplane/modules/route/routepb does. Without a protoc toolchain
// available here, the messages below are hand-written plain structs
// instead of protoreflect-backed generated messages, and the server
// registers a codec (see codec.go) that frames them as JSON rather than
// protobuf wire bytes. The RPC surface, the ServiceDesc wiring, and the
// transport are all real grpc; only the payload encoding differs from a
// protoc-generated service.
package controlplanepb

// QueueDepths reports the current fill level of the job queue and of
// every per-connection datagram queue.
type QueueDepths struct {
	JobQueueUsed     int64 `json:"job_queue_used"`
	JobQueueCapacity int64 `json:"job_queue_capacity"`

	DatagramQueueUsed     []int64 `json:"datagram_queue_used"`
	DatagramQueueCapacity []int64 `json:"datagram_queue_capacity"`
}

func (m *QueueDepths) GetJobQueueUsed() int64 {
	if m == nil {
		return 0
	}
	return m.JobQueueUsed
}

func (m *QueueDepths) GetJobQueueCapacity() int64 {
	if m == nil {
		return 0
	}
	return m.JobQueueCapacity
}

// PPSStatus reports whether the participants registered with the PPS
// rendezvous have completed their most recent synchronization.
type PPSStatus struct {
	Synced                 bool  `json:"synced"`
	ParticipantsExpected   int32 `json:"participants_expected"`
	ParticipantsRegistered int32 `json:"participants_registered"`
	LastSyncUnixNano       int64 `json:"last_sync_unix_nano"`
}

func (m *PPSStatus) GetSynced() bool {
	if m == nil {
		return false
	}
	return m.Synced
}

// Counters reports cumulative operational counters since process start.
type Counters struct {
	TxAcquireTimeouts int64 `json:"tx_acquire_timeouts"`
	RxJitterSnaps     int64 `json:"rx_jitter_snaps"`
	JobQueueDiscards  int64 `json:"job_queue_discards"`
	IngressDatagrams  int64 `json:"ingress_datagrams"`
	IngressJobs       int64 `json:"ingress_jobs"`
}

func (m *Counters) GetTxAcquireTimeouts() int64 {
	if m == nil {
		return 0
	}
	return m.TxAcquireTimeouts
}

func (m *Counters) GetRxJitterSnaps() int64 {
	if m == nil {
		return 0
	}
	return m.RxJitterSnaps
}

func (m *Counters) GetJobQueueDiscards() int64 {
	if m == nil {
		return 0
	}
	return m.JobQueueDiscards
}

func (m *Counters) GetIngressDatagrams() int64 {
	if m == nil {
		return 0
	}
	return m.IngressDatagrams
}

func (m *Counters) GetIngressJobs() int64 {
	if m == nil {
		return 0
	}
	return m.IngressJobs
}

// GetQueueDepthsRequest, GetPPSStatusRequest and GetCountersRequest carry
// no fields; every RPC on this service reports process-wide state.
type GetQueueDepthsRequest struct{}
type GetPPSStatusRequest struct{}
type GetCountersRequest struct{}
