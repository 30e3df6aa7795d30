package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lnurl-gateway/internal/fleet"
	"lnurl-gateway/internal/invoice"
	"lnurl-gateway/internal/lnurlproto"
	"lnurl-gateway/internal/offer"
	"lnurl-gateway/internal/selection"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HealthChecker reports whether at least one backend is currently
// selectable, for the /health/full readiness probe.
type HealthChecker interface {
	Current() *fleet.Snapshot
}

// LNURLHandler serves the wallet-facing LNURL-Pay surface (spec §6.1).
type LNURLHandler struct {
	offers  offer.Provider
	orch    *invoice.Orchestrator
	engine  *selection.Engine
	fleet   HealthChecker
	logger  *zap.Logger
	maxCommentLen int
	partitions    map[string]struct{}
}

// NewLNURLHandler constructs the public LNURL-Pay handler. partitions is
// this node's configured partition set (spec §3 "Partition"); an empty
// set serves every partition, matching fleet.Adapter's own convention.
func NewLNURLHandler(offers offer.Provider, orch *invoice.Orchestrator, engine *selection.Engine, fleet HealthChecker, maxCommentLen int, partitions []string, logger *zap.Logger) *LNURLHandler {
	set := make(map[string]struct{}, len(partitions))
	for _, p := range partitions {
		set[p] = struct{}{}
	}
	return &LNURLHandler{offers: offers, orch: orch, engine: engine, fleet: fleet, maxCommentLen: maxCommentLen, partitions: set, logger: logger}
}

// commentAllowed reports the advertised maximum comment length (spec
// §6.1's offer document "commentAllowed" field), or nil when this node
// imposes no limit.
func (h *LNURLHandler) commentAllowed() *uint32 {
	if h.maxCommentLen <= 0 {
		return nil
	}
	n := uint32(h.maxCommentLen)
	return &n
}

// servesPartition reports whether this node is configured to serve
// partition. An empty configured set means no restriction.
func (h *LNURLHandler) servesPartition(partition string) bool {
	if len(h.partitions) == 0 {
		return true
	}
	_, ok := h.partitions[partition]
	return ok
}

func (h *LNURLHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /offers/{partition}/{id}", h.getOffer)
	mux.HandleFunc("GET /offers/{partition}/{id}/invoice", h.getInvoice)
	mux.HandleFunc("GET /offers/{partition}/{id}/bech32", h.getBech32)
	mux.HandleFunc("GET /offers/{partition}/{id}/bech32/qr", h.getBech32QR)
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /health/full", h.healthFull)
}

func (h *LNURLHandler) getOffer(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	off, err := h.offers.Offer(r.Context(), partition, id)
	if err != nil {
		h.logger.Warn("lnurl.getOffer", zap.Error(err))
		writeLNURLError(w, statusFor(err), "offer lookup failed")
		return
	}
	if off == nil {
		http.NotFound(w, r)
		return
	}
	now := time.Now()
	if off.Expired(now) {
		http.NotFound(w, r)
		return
	}

	setCacheHeaders(w, off.Expires, now)

	callback := h.callbackURL(r, partition, id)
	doc := lnurlproto.NewOffer(*off, callback, h.commentAllowed())
	writeJSON(w, http.StatusOK, doc)
}

func (h *LNURLHandler) getInvoice(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	amountStr := q.Get("amount")
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil || amount == 0 {
		writeLNURLError(w, http.StatusBadRequest, "invalid or missing amount")
		return
	}

	comment := q.Get("comment")
	if h.maxCommentLen > 0 && len(comment) > h.maxCommentLen {
		writeLNURLError(w, http.StatusBadRequest, "comment exceeds maximum length")
		return
	}

	inv, err := h.orch.Issue(r.Context(), invoice.Request{
		Partition:  partition,
		OfferID:    id,
		AmountMsat: amount,
		RoutingKey: []byte(comment),
	})
	if err != nil {
		writeLNURLError(w, lnurlStatusFor(err), publicMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, lnurlproto.NewInvoice(inv))
}

func (h *LNURLHandler) getBech32(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	encoded, err := lnurlproto.EncodeBech32(h.offerURL(r, partition, id))
	if err != nil {
		h.logger.Warn("lnurl.getBech32", zap.Error(err))
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(encoded))
}

func (h *LNURLHandler) getBech32QR(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	encoded, err := lnurlproto.EncodeBech32(h.offerURL(r, partition, id))
	if err != nil {
		h.logger.Warn("lnurl.getBech32QR", zap.Error(err))
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	png, err := lnurlproto.EncodeQRPNG(encoded, 256)
	if err != nil {
		h.logger.Warn("lnurl.getBech32QR", zap.Error(err))
		http.Error(w, "encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (h *LNURLHandler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *LNURLHandler) healthFull(w http.ResponseWriter, r *http.Request) {
	_, ok := h.engine.HealthCheck(h.fleet.Current())
	if !ok {
		http.Error(w, "no selectable backend", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *LNURLHandler) pathIDs(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	partition := r.PathValue("partition")
	if !h.servesPartition(partition) {
		http.NotFound(w, r)
		return "", uuid.UUID{}, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return "", uuid.UUID{}, false
	}
	return partition, id, true
}

// scheme resolves the public-facing scheme for callback URLs: the
// Forwarded header's proto parameter takes precedence over
// X-Forwarded-Proto, which in turn beats the connection's own scheme
// (spec §6.1).
func scheme(r *http.Request) string {
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		for _, part := range strings.Split(fwd, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "proto=") {
				return strings.Trim(part[len("proto="):], `"`)
			}
		}
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (h *LNURLHandler) offerURL(r *http.Request, partition string, id uuid.UUID) string {
	u := url.URL{Scheme: scheme(r), Host: r.Host, Path: "/offers/" + partition + "/" + id.String()}
	return u.String()
}

func (h *LNURLHandler) callbackURL(r *http.Request, partition string, id uuid.UUID) string {
	u := url.URL{Scheme: scheme(r), Host: r.Host, Path: "/offers/" + partition + "/" + id.String() + "/invoice"}
	return u.String()
}

// setCacheHeaders implements spec §6.1's cache-control rules: a bounded
// offer is cacheable until it expires, an unbounded one must never be
// cached by an intermediary.
func setCacheHeaders(w http.ResponseWriter, expires *time.Time, now time.Time) {
	if expires != nil {
		maxAge := int(expires.Sub(now).Seconds())
		if maxAge < 0 {
			maxAge = 0
		}
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
		w.Header().Set("Expires", expires.UTC().Format(http.TimeFormat))
		return
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Expires", "Thu, 01 Jan 1970 00:00:00 GMT")
	w.Header().Set("Pragma", "no-cache")
}
