// Package invoice implements the Invoice Orchestrator (spec §4.7): it
// turns a validated invoice request into a backend pick, a dispatched
// GetInvoice RPC, and a retry loop that re-picks and re-dispatches under
// backoff whenever the dispatch fails for an Upstream or Internal reason,
// while a Downstream failure is returned to the caller immediately.
package invoice

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"lnurl-gateway/internal/backoff"
	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/offer"
	"lnurl-gateway/internal/pool"
	"lnurl-gateway/internal/queue"
	"lnurl-gateway/internal/selection"
	"lnurl-gateway/internal/serviceerr"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound marks the subset of Downstream failures an HTTP caller
// should see as 404 rather than 400: an absent/expired offer, or a
// partition this node isn't configured to serve (spec §4.7 steps 1-2).
// Callers distinguish it with errors.Is against the returned error.
var ErrNotFound = errors.New("offer not found")

// FleetView supplies the current fleet snapshot; decoupled from the
// concrete fleet.Fleet so the orchestrator can be tested without a real
// reconcile loop running.
type FleetView interface {
	Current() *fleet.Snapshot
}

// Dispatcher is the subset of the Node RPC Pool the orchestrator drives.
type Dispatcher interface {
	GetInvoice(ctx context.Context, addr discovery.Address, amountMsat *uint64, desc pool.Description, expirySecs *uint32) (string, error)
	Features(ctx context.Context, addr discovery.Address) (pool.Features, error)
}

// EventStream is the best-effort invoice-issuance audit stream. A
// publish failure is logged, never propagated: the stream is an audit
// trail, not part of the request's correctness.
type EventStream interface {
	Publish(ctx context.Context, stream string, data []byte) (string, error)
}

const (
	issuedStream = "invoice-issued"
	failedStream = "invoice-failed"
)

// Request is one invoice request: the offer it's issued against, the
// amount the wallet asked to pay, and the routing key used by the
// consistent-hash policy (typically a payer-supplied identifier, empty
// when the policy doesn't consult it).
type Request struct {
	Partition  string
	OfferID    uuid.UUID
	AmountMsat uint64
	RoutingKey []byte
	ExpirySecs *uint32
}

// CapacityBias is nil when no capacity bias is configured; non-nil values
// are passed straight to the Selection Engine's two-pass pick.
type CapacityBias = *float64

// Orchestrator wires the Selection Engine, the Node RPC Pool, and a
// backoff Provider into the invoice issuance pipeline.
type Orchestrator struct {
	fleet        FleetView
	engine       *selection.Engine
	pool         Dispatcher
	backoff      backoff.Provider
	offers       offer.Provider
	events       EventStream
	logger       *zap.Logger
	capacityBias CapacityBias

	refreshDiscovery func(context.Context) error
	refreshHealth    func(context.Context)

	partitions map[string]struct{}
}

// SetRefreshHooks wires the background discovery-refresh and health-recheck
// callbacks spec §4.7 step (e) fires alongside the retry backoff sleep.
// Either argument may be nil. Neither call is awaited: a slow or failing
// refresh is logged and never stretches the retry window past the backoff
// sleep it runs alongside.
func (o *Orchestrator) SetRefreshHooks(discoveryRefresh func(context.Context) error, healthRecheck func(context.Context)) {
	o.refreshDiscovery = discoveryRefresh
	o.refreshHealth = healthRecheck
}

// SetPartitions restricts Issue to the given partition set (spec §4.7 step
// 2: "partition must be in the node's configured partition set"). An empty
// or nil set serves every partition, matching fleet.Adapter's convention
// for a node with no partition restriction configured.
func (o *Orchestrator) SetPartitions(partitions []string) {
	set := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		set[p] = struct{}{}
	}
	o.partitions = set
}

func (o *Orchestrator) servesPartition(partition string) bool {
	if len(o.partitions) == 0 {
		return true
	}
	_, ok := o.partitions[partition]
	return ok
}

func New(fleet FleetView, engine *selection.Engine, pool Dispatcher, bo backoff.Provider, offers offer.Provider, events EventStream, capacityBias CapacityBias, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fleet:        fleet,
		engine:       engine,
		pool:         pool,
		backoff:      bo,
		offers:       offers,
		events:       events,
		capacityBias: capacityBias,
		logger:       logger,
	}
}

// Issue resolves the offer, validates the requested amount against its
// bounds, and runs the pick-dispatch-retry loop until an invoice is
// returned or the retry budget (or a Downstream error) ends it.
func (o *Orchestrator) Issue(ctx context.Context, req Request) (string, error) {
	if !o.servesPartition(req.Partition) {
		return "", serviceerr.Wrap(serviceerr.Downstream, "invoice.Issue", "partition "+req.Partition+" not served", ErrNotFound)
	}

	off, err := o.offers.Offer(ctx, req.Partition, req.OfferID)
	if err != nil {
		return "", err
	}
	if off == nil {
		return "", serviceerr.Wrap(serviceerr.Downstream, "invoice.Issue", "offer not found", ErrNotFound)
	}
	if off.Expired(time.Now()) {
		return "", serviceerr.Wrap(serviceerr.Downstream, "invoice.Issue", "offer has expired", ErrNotFound)
	}
	if req.AmountMsat < off.MinSendable || req.AmountMsat > off.MaxSendable {
		return "", serviceerr.Downstreamf("invoice.Issue", "amount %d msat outside [%d, %d]", req.AmountMsat, off.MinSendable, off.MaxSendable)
	}

	seq := o.backoff.New()
	bias := o.capacityBias
	for {
		invoice, failSource, failReason := o.attempt(ctx, req, *off, bias)
		bias = nil
		if failSource == nil {
			return invoice, nil
		}

		if *failSource == serviceerr.Downstream {
			o.publishFailed(ctx, req, *failSource, failReason)
			return "", serviceerr.New(serviceerr.Downstream, "invoice.Issue", failReason)
		}

		wait, ok := seq.Next()
		if !ok {
			o.publishFailed(ctx, req, *failSource, failReason)
			return "", serviceerr.New(*failSource, "invoice.Issue", "retry budget exhausted: "+failReason)
		}

		o.logger.Warn("invoice dispatch failed, retrying",
			zap.String("partition", req.Partition),
			zap.String("offer_id", req.OfferID.String()),
			zap.String("source", failSource.String()),
			zap.String("reason", failReason),
			zap.Duration("backoff", wait),
		)

		o.triggerBackgroundRefresh(ctx)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", serviceerr.Wrap(serviceerr.Internal, "invoice.Issue", "context cancelled during backoff", ctx.Err())
		}
	}
}

// triggerBackgroundRefresh kicks off the discovery refresh and health
// recheck concurrently with the backoff sleep, per spec §4.7 step (e).
// Neither goroutine is waited on; failures are logged only.
func (o *Orchestrator) triggerBackgroundRefresh(ctx context.Context) {
	if o.refreshDiscovery != nil {
		go func() {
			if err := o.refreshDiscovery(ctx); err != nil {
				o.logger.Warn("background discovery refresh failed", zap.Error(err))
			}
		}()
	}
	if o.refreshHealth != nil {
		go o.refreshHealth(ctx)
	}
}

// attempt performs exactly one pick-and-dispatch cycle. A nil failSource
// means success. The fleet and health data are re-read fresh on every
// attempt, so a backend that drops out during a prior backoff sleep is
// never retried against.
func (o *Orchestrator) attempt(ctx context.Context, req Request, off offer.Offer, capacityBias CapacityBias) (invoiceStr string, failSource *serviceerr.Source, failReason string) {
	snapshot := o.fleet.Current()

	backend, ok := o.engine.Pick(snapshot, req.Partition, req.AmountMsat, req.RoutingKey, capacityBias)
	if !ok {
		src := serviceerr.Upstream
		return "", &src, "no eligible backend for partition " + req.Partition
	}

	features, err := o.pool.Features(ctx, backend.Address)
	if err != nil {
		return "", classify(err), err.Error()
	}

	desc := describe(features, off)
	amount := req.AmountMsat
	inv, err := o.pool.GetInvoice(ctx, backend.Address, &amount, desc, req.ExpirySecs)
	if err != nil {
		return "", classify(err), err.Error()
	}

	o.publishIssued(ctx, req, backend.Address, off.MetadataJSONHash)
	return inv, nil, ""
}

// describe picks the description binding a backend can accept: LND
// accepts a raw description_hash directly, CLN hashes the metadata JSON
// string itself. Both converge on off.MetadataJSONHash, per spec §9's
// "two paths must yield the same description_hash" property.
func describe(features pool.Features, off offer.Offer) pool.Description {
	if features.InvoiceFromDescHash {
		return pool.HashDescription(off.MetadataJSONHash)
	}
	return pool.DirectIntoHash(off.MetadataJSONString)
}

func classify(err error) *serviceerr.Source {
	var src serviceerr.Source
	switch {
	case serviceerr.Is(err, serviceerr.Downstream):
		src = serviceerr.Downstream
	case serviceerr.Is(err, serviceerr.Internal):
		src = serviceerr.Internal
	default:
		src = serviceerr.Upstream
	}
	return &src
}

func (o *Orchestrator) publishIssued(ctx context.Context, req Request, addr discovery.Address, descHash [32]byte) {
	if o.events == nil {
		return
	}
	msg := queue.InvoiceIssuedMessage{
		Partition:       req.Partition,
		OfferID:         req.OfferID,
		BackendAddress:  hex.EncodeToString(addr.SerializeCompressed()),
		AmountMsat:      req.AmountMsat,
		DescriptionHash: hex.EncodeToString(descHash[:]),
		IssuedAt:        time.Now(),
	}
	data, err := msg.ToJSON()
	if err != nil {
		o.logger.Warn("failed to encode invoice issued event", zap.Error(err))
		return
	}
	if _, err := o.events.Publish(ctx, issuedStream, data); err != nil {
		o.logger.Warn("failed to publish invoice issued event", zap.Error(err))
	}
}

func (o *Orchestrator) publishFailed(ctx context.Context, req Request, source serviceerr.Source, reason string) {
	if o.events == nil {
		return
	}
	msg := queue.InvoiceFailedMessage{
		Partition:  req.Partition,
		OfferID:    req.OfferID,
		AmountMsat: req.AmountMsat,
		Source:     source.String(),
		Reason:     reason,
		FailedAt:   time.Now(),
	}
	data, err := msg.ToJSON()
	if err != nil {
		o.logger.Warn("failed to encode invoice failed event", zap.Error(err))
		return
	}
	if _, err := o.events.Publish(ctx, failedStream, data); err != nil {
		o.logger.Warn("failed to publish invoice failed event", zap.Error(err))
	}
}
