package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"lnurl-gateway/internal/discovery"
	"lnurl-gateway/internal/pool"
	"lnurl-gateway/internal/serviceerr"

	"github.com/btcsuite/btcd/btcec/v2"
	"go.uber.org/zap"
)

// backendWire is the admin-facing JSON shape of a discovery.Backend: the
// address is hex rather than raw bytes, and Implementation is carried in
// its decrypted, structured form — the operator's own credentials, so
// there is nothing gained by forcing them through ciphertext over a
// bearer-authenticated admin channel.
type backendWire struct {
	Address        string              `json:"address"`
	Name           *string             `json:"name,omitempty"`
	Partitions     []string            `json:"partitions"`
	Weight         int                 `json:"weight"`
	Enabled        bool                `json:"enabled"`
	Implementation pool.Implementation `json:"implementation"`
	CreatedAt      time.Time           `json:"created_at,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at,omitempty"`
}

// DiscoveryHandler serves the bearer-authenticated Discovery admin
// surface (spec §6.2).
type DiscoveryHandler struct {
	store     discovery.Store
	masterKey []byte
	logger    *zap.Logger
}

func NewDiscoveryHandler(store discovery.Store, masterKey []byte, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{store: store, masterKey: masterKey, logger: logger}
}

// Register wires the Discovery admin surface onto mux, wrapping every
// route with verify's bearer-token check.
func (h *DiscoveryHandler) Register(mux *http.ServeMux, verify func(http.Handler) http.Handler) {
	mux.Handle("GET /discovery", verify(http.HandlerFunc(h.list)))
	mux.Handle("POST /discovery", verify(http.HandlerFunc(h.create)))
	mux.Handle("GET /discovery/{address}", verify(http.HandlerFunc(h.get)))
	mux.Handle("PUT /discovery/{address}", verify(http.HandlerFunc(h.put)))
	mux.Handle("PATCH /discovery/{address}", verify(http.HandlerFunc(h.patch)))
	mux.Handle("DELETE /discovery/{address}", verify(http.HandlerFunc(h.delete)))
}

func (h *DiscoveryHandler) toWire(b discovery.Backend) (backendWire, error) {
	impl, err := pool.DecodeImplementation(b.Implementation, h.masterKey)
	if err != nil {
		return backendWire{}, serviceerr.Wrap(serviceerr.Internal, "httpapi.toWire", "decrypting implementation", err)
	}
	return backendWire{
		Address:        hex.EncodeToString(b.Address.SerializeCompressed()),
		Name:           b.Name,
		Partitions:     b.Partitions,
		Weight:         b.Weight,
		Enabled:        b.Enabled,
		Implementation: impl,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}, nil
}

func (h *DiscoveryHandler) fromWire(w backendWire) (discovery.Backend, error) {
	addrBytes, err := hex.DecodeString(w.Address)
	if err != nil {
		return discovery.Backend{}, serviceerr.Downstreamf("httpapi.fromWire", "invalid address encoding: %v", err)
	}
	addr, err := btcec.ParsePubKey(addrBytes)
	if err != nil {
		return discovery.Backend{}, serviceerr.Downstreamf("httpapi.fromWire", "invalid address: %v", err)
	}
	cipher, err := pool.EncodeImplementation(w.Implementation, h.masterKey)
	if err != nil {
		return discovery.Backend{}, serviceerr.Wrap(serviceerr.Internal, "httpapi.fromWire", "encrypting implementation", err)
	}
	return discovery.Backend{
		Address:        addr,
		Name:           w.Name,
		Partitions:     w.Partitions,
		Weight:         w.Weight,
		Enabled:        w.Enabled,
		Implementation: cipher,
	}, nil
}

func (h *DiscoveryHandler) list(w http.ResponseWriter, r *http.Request) {
	var ifETag *uint64
	if tag := r.Header.Get("If-None-Match"); tag != "" {
		if v, err := strconv.ParseUint(tag, 16, 64); err == nil {
			ifETag = &v
		}
	}

	backends, err := h.store.GetAll(r.Context(), ifETag)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.list", err)
		return
	}

	w.Header().Set("ETag", strconv.FormatUint(backends.ETag, 16))
	if backends.List == nil && ifETag != nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	wire := make([]backendWire, 0, len(backends.List))
	for _, b := range backends.List {
		bw, err := h.toWire(b)
		if err != nil {
			writeAdminError(w, h.logger, "discovery.list", err)
			return
		}
		wire = append(wire, bw)
	}
	writeJSON(w, http.StatusOK, wire)
}

func (h *DiscoveryHandler) create(w http.ResponseWriter, r *http.Request) {
	var bw backendWire
	if err := json.NewDecoder(r.Body).Decode(&bw); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	backend, err := h.fromWire(bw)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.create", err)
		return
	}

	addr, created, err := h.store.Post(r.Context(), backend)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.create", err)
		return
	}
	if !created {
		http.Error(w, "backend already registered", http.StatusConflict)
		return
	}

	w.Header().Set("Location", "/discovery/"+hex.EncodeToString(addr.SerializeCompressed()))
	w.WriteHeader(http.StatusCreated)
}

func (h *DiscoveryHandler) get(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	backend, err := h.store.Get(r.Context(), addr)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.get", err)
		return
	}
	if backend == nil {
		http.NotFound(w, r)
		return
	}
	bw, err := h.toWire(*backend)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.get", err)
		return
	}
	writeJSON(w, http.StatusOK, bw)
}

func (h *DiscoveryHandler) put(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	var bw backendWire
	if err := json.NewDecoder(r.Body).Decode(&bw); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	bw.Address = hex.EncodeToString(addr.SerializeCompressed())

	backend, err := h.fromWire(bw)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.put", err)
		return
	}

	created, err := h.store.Put(r.Context(), backend)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.put", err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscoveryHandler) patch(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}

	var body struct {
		Name           *string  `json:"name"`
		Partitions     []string `json:"partitions"`
		Weight         *int     `json:"weight"`
		Enabled        *bool    `json:"enabled"`
		Implementation *pool.Implementation `json:"implementation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	patch := discovery.Patch{Address: addr, Name: body.Name, Partitions: body.Partitions, Weight: body.Weight, Enabled: body.Enabled}
	if body.Implementation != nil {
		cipher, err := pool.EncodeImplementation(*body.Implementation, h.masterKey)
		if err != nil {
			writeAdminError(w, h.logger, "discovery.patch", serviceerr.Wrap(serviceerr.Internal, "discovery.patch", "encrypting implementation", err))
			return
		}
		patch.Implementation = cipher
	}

	changed, err := h.store.Patch(r.Context(), patch)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.patch", err)
		return
	}
	if !changed {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscoveryHandler) delete(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.pathAddress(w, r)
	if !ok {
		return
	}
	deleted, err := h.store.Delete(r.Context(), addr)
	if err != nil {
		writeAdminError(w, h.logger, "discovery.delete", err)
		return
	}
	if !deleted {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscoveryHandler) pathAddress(w http.ResponseWriter, r *http.Request) (discovery.Address, bool) {
	raw, err := hex.DecodeString(r.PathValue("address"))
	if err != nil {
		http.Error(w, "invalid address encoding", http.StatusBadRequest)
		return nil, false
	}
	addr, err := btcec.ParsePubKey(raw)
	if err != nil {
		http.Error(w, "invalid address", http.StatusBadRequest)
		return nil, false
	}
	return addr, true
}
