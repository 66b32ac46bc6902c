package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// payloadSchema carries one payload per row.
var payloadSchema = arrow.NewSchema(
	[]arrow.Field{{Name: "payload", Type: arrow.BinaryTypes.Binary}},
	nil,
)

// header travels in the Flight descriptor command of every DoPut.
type header struct {
	Src int   `cbor:"src"`
	Tag int64 `cbor:"tag"`
}

// FlightConfig configures a Flight transport endpoint.
type FlightConfig struct {
	Rank int
	// Listen is the local address served by this rank, e.g. "localhost:0".
	Listen string
	// Peers holds one address per rank. The entry for Rank is ignored. Peers
	// may be set after construction with SetPeers.
	Peers            []string
	MaxInflightBytes int64
	BreakerFailures  int
	BreakerTimeout   time.Duration
	Allocator        memory.Allocator
	Logger           *zerolog.Logger
}

type peer struct {
	conn    *grpc.ClientConn
	client  flight.Client
	breaker *CircuitBreaker
}

// Flight is a Transport exchanging payloads as Arrow record batches over
// Flight DoPut.
type Flight struct {
	cfg    FlightConfig
	logger zerolog.Logger
	alloc  memory.Allocator
	sem    *semaphore.Weighted
	mbox   *Mailbox
	server flight.Server

	mu    sync.Mutex
	peers map[int]*peer
	addrs []string
}

var _ Transport = (*Flight)(nil)

// NewFlight starts serving cfg.Listen and returns the endpoint.
func NewFlight(cfg FlightConfig) (*Flight, error) {
	if cfg.MaxInflightBytes <= 0 {
		cfg.MaxInflightBytes = 64 << 20
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Second
	}
	if cfg.Allocator == nil {
		cfg.Allocator = memory.NewGoAllocator()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	f := &Flight{
		cfg:    cfg,
		logger: logger.With().Str("component", "flight").Int("rank", cfg.Rank).Logger(),
		alloc:  cfg.Allocator,
		sem:    semaphore.NewWeighted(cfg.MaxInflightBytes),
		mbox:   NewMailbox(),
		peers:  make(map[int]*peer),
		addrs:  append([]string(nil), cfg.Peers...),
	}

	f.server = flight.NewServerWithMiddleware(nil)
	f.server.RegisterFlightService(&flightService{mbox: f.mbox, alloc: f.alloc, logger: f.logger})
	if err := f.server.Init(cfg.Listen); err != nil {
		return nil, errors.Wrapf(err, "init flight server on %s", cfg.Listen)
	}
	go func() {
		if err := f.server.Serve(); err != nil {
			f.logger.Error().Err(err).Msg("Flight server failed")
		}
	}()
	f.logger.Info().Str("addr", f.server.Addr().String()).Msg("Flight transport listening")
	return f, nil
}

// Addr returns the bound listen address.
func (f *Flight) Addr() net.Addr { return f.server.Addr() }

// SetPeers replaces the peer address table.
func (f *Flight) SetPeers(addrs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs = append([]string(nil), addrs...)
}

func (f *Flight) Rank() int { return f.cfg.Rank }

func (f *Flight) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addrs)
}

func (f *Flight) peer(dst int) (*peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.peers[dst]; ok {
		return p, nil
	}
	if err := checkRank(dst, len(f.addrs)); err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(f.addrs[dst], grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "dial rank %d at %s", dst, f.addrs[dst])
	}
	label := strconv.Itoa(dst)
	cb := NewCircuitBreaker(f.cfg.BreakerFailures, f.cfg.BreakerTimeout)
	cb.OnChange(func(s State) {
		breakerState.WithLabelValues(label).Set(float64(s))
		if s == StateOpen {
			f.logger.Warn().Int("peer", dst).Msg("Circuit breaker open")
		}
	})
	p := &peer{
		conn:    conn,
		client:  flight.NewClientFromConn(conn, nil),
		breaker: cb,
	}
	f.peers[dst] = p
	return p, nil
}

func (f *Flight) Send(ctx context.Context, dst int, tag int64, payload []byte) error {
	if dst == f.cfg.Rank {
		return f.mbox.Deliver(dst, tag, bytes.Clone(payload))
	}
	p, err := f.peer(dst)
	if err != nil {
		return err
	}
	if !p.breaker.Allow() {
		return errors.Wrapf(ErrBreakerOpen, "send to rank %d", dst)
	}

	weight := min(int64(len(payload)), f.cfg.MaxInflightBytes)
	if err := f.sem.Acquire(ctx, weight); err != nil {
		return err
	}
	defer f.sem.Release(weight)

	if err := f.doPut(ctx, p, tag, payload); err != nil {
		p.breaker.Failure()
		return errors.Wrapf(err, "send tag %d to rank %d", tag, dst)
	}
	p.breaker.Success()
	observeSend("flight", len(payload))
	return nil
}

func (f *Flight) doPut(ctx context.Context, p *peer, tag int64, payload []byte) error {
	cmd, err := cbor.Marshal(header{Src: f.cfg.Rank, Tag: tag})
	if err != nil {
		return err
	}

	b := array.NewBinaryBuilder(f.alloc, arrow.BinaryTypes.Binary)
	defer b.Release()
	b.Append(payload)
	col := b.NewArray()
	defer col.Release()
	rec := array.NewRecordBatch(payloadSchema, []arrow.Array{col}, 1)
	defer rec.Release()

	stream, err := p.client.DoPut(ctx)
	if err != nil {
		return err
	}
	writer := flight.NewRecordWriter(stream, ipc.WithSchema(payloadSchema), ipc.WithAllocator(f.alloc))
	writer.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: cmd})
	if err := writer.Write(rec); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	// the server answers once the payload is in its mailbox
	for {
		if _, err := stream.Recv(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (f *Flight) Recv(ctx context.Context, src int, tag int64) ([]byte, error) {
	payload, err := f.mbox.Recv(ctx, src, tag)
	if err != nil {
		return nil, err
	}
	observeRecv("flight", len(payload))
	return payload, nil
}

// Close stops the server and drops peer connections.
func (f *Flight) Close() error {
	f.server.Shutdown()
	f.mbox.Close()

	f.mu.Lock()
	defer f.mu.Unlock()
	var first error
	for dst, p := range f.peers {
		if err := p.conn.Close(); err != nil && first == nil {
			first = err
		}
		delete(f.peers, dst)
	}
	return first
}

type flightService struct {
	flight.BaseFlightServer
	mbox   *Mailbox
	alloc  memory.Allocator
	logger zerolog.Logger
}

func (s *flightService) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.alloc))
	if err != nil {
		return err
	}
	defer reader.Release()

	desc := reader.LatestFlightDescriptor()
	if desc == nil {
		return errors.New("DoPut without descriptor")
	}
	var hdr header
	if err := cbor.Unmarshal(desc.Cmd, &hdr); err != nil {
		return errors.Wrap(err, "decode transfer header")
	}

	for reader.Next() {
		rec := reader.Record()
		col, ok := rec.Column(0).(*array.Binary)
		if !ok {
			return errors.Errorf("unexpected payload column %s", rec.Column(0).DataType())
		}
		for i := 0; i < col.Len(); i++ {
			if err := s.mbox.Deliver(hdr.Src, hdr.Tag, bytes.Clone(col.Value(i))); err != nil {
				return err
			}
		}
		s.logger.Debug().Int("src", hdr.Src).Int64("tag", hdr.Tag).Int64("rows", rec.NumRows()).Msg("DoPut received payload")
	}
	return reader.Err()
}
