package lnurlproto

import "lnurl-gateway/internal/offer"

// OfferTag identifies the LNURL-Pay flavor of an offer document.
type OfferTag string

const PayRequest OfferTag = "payRequest"

// Offer is the LNURL-Pay offer document served at the pay-request
// endpoint (LUD-06 step 1).
type Offer struct {
	Callback       string   `json:"callback"`
	MaxSendable    uint64   `json:"maxSendable"`
	MinSendable    uint64   `json:"minSendable"`
	Tag            OfferTag `json:"tag"`
	Metadata       string   `json:"metadata"`
	CommentAllowed *uint32  `json:"commentAllowed,omitempty"`
}

// NewOffer builds the served offer document from a materialized offer and
// the callback URL the wallet must hit to request an invoice.
func NewOffer(o offer.Offer, callback string, commentAllowed *uint32) Offer {
	return Offer{
		Callback:       callback,
		MaxSendable:    o.MaxSendable,
		MinSendable:    o.MinSendable,
		Tag:            PayRequest,
		Metadata:       o.MetadataJSONString,
		CommentAllowed: commentAllowed,
	}
}
