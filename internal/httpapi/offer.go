package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"lnurl-gateway/internal/offer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recordWire is the admin-facing JSON shape of an offer.Record.
type recordWire struct {
	MaxSendable uint64     `json:"max_sendable"`
	MinSendable uint64     `json:"min_sendable"`
	MetadataID  uuid.UUID  `json:"metadata_id"`
	Timestamp   time.Time  `json:"timestamp"`
	Expires     *time.Time `json:"expires,omitempty"`
}

func (w recordWire) toRecord(partition string, id uuid.UUID) offer.Record {
	return offer.Record{
		Partition:   partition,
		ID:          id,
		MaxSendable: w.MaxSendable,
		MinSendable: w.MinSendable,
		MetadataID:  w.MetadataID,
		Timestamp:   w.Timestamp,
		Expires:     w.Expires,
	}
}

func recordToWire(r offer.Record) recordWire {
	return recordWire{MaxSendable: r.MaxSendable, MinSendable: r.MinSendable, MetadataID: r.MetadataID, Timestamp: r.Timestamp, Expires: r.Expires}
}

// metadataWire is the admin-facing JSON shape of an offer.Metadata row.
type metadataWire struct {
	Text       string           `json:"text"`
	LongText   *string          `json:"long_text,omitempty"`
	Image      *offer.Image     `json:"image,omitempty"`
	Identifier *offer.Identifier `json:"identifier,omitempty"`
}

func (w metadataWire) toMetadata(partition string, id uuid.UUID) offer.Metadata {
	return offer.Metadata{Partition: partition, ID: id, Text: w.Text, LongText: w.LongText, Image: w.Image, Identifier: w.Identifier}
}

func metadataToWire(m offer.Metadata) metadataWire {
	return metadataWire{Text: m.Text, LongText: m.LongText, Image: m.Image, Identifier: m.Identifier}
}

// OfferAdminHandler serves the bearer-authenticated Offer admin surface
// (spec §6.3): CRUD on offer records and their metadata.
type OfferAdminHandler struct {
	offers   offer.Store
	metadata offer.MetadataStore
	logger   *zap.Logger
}

func NewOfferAdminHandler(offers offer.Store, metadata offer.MetadataStore, logger *zap.Logger) *OfferAdminHandler {
	return &OfferAdminHandler{offers: offers, metadata: metadata, logger: logger}
}

// Register wires the Offer admin surface onto mux. mux MUST be the admin
// server's own ServeMux, never the public LNURL-Pay one: both surfaces
// claim GET /offers/{partition}/{id}, for an admin record and a wallet
// document respectively, and the two are distinguished only by which
// port/listener the request arrived on.
func (h *OfferAdminHandler) Register(mux *http.ServeMux, verify func(http.Handler) http.Handler) {
	mux.Handle("GET /offers/{partition}", verify(http.HandlerFunc(h.listOffers)))
	mux.Handle("POST /offers/{partition}", verify(http.HandlerFunc(h.createOffer)))
	mux.Handle("GET /offers/{partition}/{id}", verify(http.HandlerFunc(h.getOffer)))
	mux.Handle("PUT /offers/{partition}/{id}", verify(http.HandlerFunc(h.putOffer)))
	mux.Handle("DELETE /offers/{partition}/{id}", verify(http.HandlerFunc(h.deleteOffer)))

	mux.Handle("GET /metadata/{partition}", verify(http.HandlerFunc(h.listMetadata)))
	mux.Handle("POST /metadata/{partition}", verify(http.HandlerFunc(h.createMetadata)))
	mux.Handle("GET /metadata/{partition}/{id}", verify(http.HandlerFunc(h.getMetadata)))
	mux.Handle("PUT /metadata/{partition}/{id}", verify(http.HandlerFunc(h.putMetadata)))
	mux.Handle("DELETE /metadata/{partition}/{id}", verify(http.HandlerFunc(h.deleteMetadata)))
}

func (h *OfferAdminHandler) listOffers(w http.ResponseWriter, r *http.Request) {
	partition := r.PathValue("partition")
	records, err := h.offers.GetOffers(r.Context(), partition, nil, 0)
	if err != nil {
		writeAdminError(w, h.logger, "offer.listOffers", err)
		return
	}
	out := make([]recordWire, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToWire(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OfferAdminHandler) createOffer(w http.ResponseWriter, r *http.Request) {
	partition := r.PathValue("partition")
	var body recordWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := uuid.New()
	created, err := h.offers.PostOffer(r.Context(), body.toRecord(partition, id))
	if err != nil {
		writeAdminError(w, h.logger, "offer.createOffer", err)
		return
	}
	if !created {
		http.Error(w, "offer already exists", http.StatusConflict)
		return
	}
	w.Header().Set("Location", "/offers/"+partition+"/"+id.String())
	w.WriteHeader(http.StatusCreated)
}

func (h *OfferAdminHandler) getOffer(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	rec, err := h.offers.GetOffer(r.Context(), partition, id)
	if err != nil {
		writeAdminError(w, h.logger, "offer.getOffer", err)
		return
	}
	if rec == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, recordToWire(*rec))
}

func (h *OfferAdminHandler) putOffer(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	var body recordWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.offers.PutOffer(r.Context(), body.toRecord(partition, id))
	if err != nil {
		writeAdminError(w, h.logger, "offer.putOffer", err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferAdminHandler) deleteOffer(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	deleted, err := h.offers.DeleteOffer(r.Context(), partition, id)
	if err != nil {
		writeAdminError(w, h.logger, "offer.deleteOffer", err)
		return
	}
	if !deleted {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferAdminHandler) listMetadata(w http.ResponseWriter, r *http.Request) {
	partition := r.PathValue("partition")
	records, err := h.metadata.GetAllMetadata(r.Context(), partition, nil, 0)
	if err != nil {
		writeAdminError(w, h.logger, "offer.listMetadata", err)
		return
	}
	out := make([]metadataWire, 0, len(records))
	for _, m := range records {
		out = append(out, metadataToWire(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OfferAdminHandler) createMetadata(w http.ResponseWriter, r *http.Request) {
	partition := r.PathValue("partition")
	var body metadataWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := uuid.New()
	created, err := h.metadata.PostMetadata(r.Context(), body.toMetadata(partition, id))
	if err != nil {
		writeAdminError(w, h.logger, "offer.createMetadata", err)
		return
	}
	if !created {
		http.Error(w, "metadata already exists", http.StatusConflict)
		return
	}
	w.Header().Set("Location", "/metadata/"+partition+"/"+id.String())
	w.WriteHeader(http.StatusCreated)
}

func (h *OfferAdminHandler) getMetadata(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	m, err := h.metadata.GetMetadata(r.Context(), partition, id)
	if err != nil {
		writeAdminError(w, h.logger, "offer.getMetadata", err)
		return
	}
	if m == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, metadataToWire(*m))
}

func (h *OfferAdminHandler) putMetadata(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	var body metadataWire
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	created, err := h.metadata.PutMetadata(r.Context(), body.toMetadata(partition, id))
	if err != nil {
		writeAdminError(w, h.logger, "offer.putMetadata", err)
		return
	}
	if created {
		w.WriteHeader(http.StatusCreated)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferAdminHandler) deleteMetadata(w http.ResponseWriter, r *http.Request) {
	partition, id, ok := h.pathIDs(w, r)
	if !ok {
		return
	}
	deleted, err := h.metadata.DeleteMetadata(r.Context(), partition, id)
	if err != nil {
		writeAdminError(w, h.logger, "offer.deleteMetadata", err)
		return
	}
	if !deleted {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OfferAdminHandler) pathIDs(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	partition := r.PathValue("partition")
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return "", uuid.UUID{}, false
	}
	return partition, id, true
}
