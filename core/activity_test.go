package core

import "testing"

func TestMetadataKindFor(t *testing.T) {
	cases := []struct {
		tag  ActivityType
		want MetadataKind
	}{
		{ActivityStatusChange, MetadataKindStatusChange},
		{ActivityVendorApproval, MetadataKindStatusChange},
		{ActivityCustomerRejection, MetadataKindStatusChange},
		{ActivityTrackingStatusSync, MetadataKindStatusChange},
		{ActivityPaymentRecorded, MetadataKindPayment},
		{ActivityPaymentReminder, MetadataKindPayment},
		{ActivityShippingAdded, MetadataKindShipping},
		{ActivityShippingLabel, MetadataKindShipping},
		{ActivityEmailSent, MetadataKindEmail},
		{ActivityEmailEngagement, MetadataKindEmail},
		{ActivityQuoteCreated, MetadataKindGeneric},
		{ActivitySampleReceived, MetadataKindGeneric},
		{ActivityType("future_tag"), MetadataKindGeneric},
	}
	for _, tc := range cases {
		if got := MetadataKindFor(tc.tag); got != tc.want {
			t.Fatalf("kind for %s: expected %s, got %s", tc.tag, tc.want, got)
		}
	}
}

func TestActivityEntryValidate(t *testing.T) {
	entry := ActivityEntry{
		QuoteID: "q-1",
		Type:    ActivityPaymentRecorded,
		Metadata: PaymentMetadata{
			AmountCents:    1000,
			Currency:       "USD",
			TransactionRef: "txn_1",
		},
	}
	if err := entry.Validate(); err != nil {
		t.Fatalf("valid entry: %v", err)
	}

	entry.Metadata = StatusChangeMetadata{From: QuoteStatusDraft, To: QuoteStatusSentToVendor}
	if err := entry.Validate(); err == nil {
		t.Fatalf("expected variant mismatch to fail")
	}

	entry = ActivityEntry{Type: ActivityStatusChange}
	if err := entry.Validate(); err == nil {
		t.Fatalf("expected missing quote id to fail")
	}

	entry = ActivityEntry{QuoteID: "q-1"}
	if err := entry.Validate(); err == nil {
		t.Fatalf("expected missing type to fail")
	}
}

func TestDecodeActivityMetadataRoundTrip(t *testing.T) {
	shipping := ShippingMetadata{
		TrackingNumber: "TRK-1",
		CarrierCode:    "ups",
		Status:         QuoteStatusInTransit,
		Source:         TrackingSourceAutomatic,
		Location:       "Louisville, KY",
	}
	decoded := DecodeActivityMetadata(ActivityShippingAdded, shipping.Fields())
	got, ok := decoded.(ShippingMetadata)
	if !ok {
		t.Fatalf("expected shipping metadata, got %T", decoded)
	}
	if got != shipping {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, shipping)
	}

	payment := PaymentMetadata{AmountCents: 12550, Currency: "USD", TransactionRef: "txn_9"}
	decodedPayment := DecodeActivityMetadata(ActivityPaymentRecorded, payment.Fields())
	if decodedPayment.(PaymentMetadata) != payment {
		t.Fatalf("payment round trip mismatch: %+v", decodedPayment)
	}

	// stored jsonb comes back with float64 numbers
	loose := map[string]any{"amount_cents": float64(500), "currency": "USD", "transaction_ref": "t"}
	if DecodeActivityMetadata(ActivityPaymentRecorded, loose).(PaymentMetadata).AmountCents != 500 {
		t.Fatalf("expected float64 amount to decode")
	}
}

func TestDecodeActivityMetadataGenericKeepsExtras(t *testing.T) {
	fields := map[string]any{"note": "sample arrived damp", "container": "cooler"}
	decoded := DecodeActivityMetadata(ActivitySampleReceived, fields)
	generic, ok := decoded.(GenericMetadata)
	if !ok {
		t.Fatalf("expected generic metadata, got %T", decoded)
	}
	if generic.Note != "sample arrived damp" {
		t.Fatalf("expected note preserved, got %q", generic.Note)
	}
	if generic.Extra["container"] != "cooler" {
		t.Fatalf("expected extras preserved, got %+v", generic.Extra)
	}
}
