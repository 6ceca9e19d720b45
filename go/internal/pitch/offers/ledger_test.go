package offers

import (
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/pitchtank/go/internal/models"
)

func newLedger() *Ledger {
	return NewLedger(clockwork.NewFakeClock())
}

func TestCreateIsIdempotentOnID(t *testing.T) {
	l := newLedger()
	o := models.Offer{ID: "o1", SharkID: "elena_brooks", Amount: 500000, EquityPercent: 20}

	if _, created := l.Create(o); !created {
		t.Fatal("first create should succeed")
	}
	o.Amount = 1
	got, created := l.Create(o)
	if created {
		t.Fatal("second create with same id should be a no-op")
	}
	if got.Amount != 500000 {
		t.Errorf("existing offer changed: amount=%d", got.Amount)
	}
	if l.Len() != 1 {
		t.Errorf("len: got %d, want 1", l.Len())
	}
}

func TestIDLessOfferAdoptsServerID(t *testing.T) {
	l := newLedger()
	embedded := models.Offer{SharkID: "victor_slate", Amount: 250000, EquityPercent: 15}

	first, created := l.Create(embedded)
	if !created || first.ID == "" {
		t.Fatalf("embedded offer: created=%v id=%q", created, first.ID)
	}
	if _, created := l.Create(embedded); created {
		t.Fatal("same id-less offer created twice")
	}

	withID := embedded
	withID.ID = "srv-1"
	adopted, created := l.Create(withID)
	if created {
		t.Fatal("server copy of an embedded offer should not create a second offer")
	}
	if adopted.ID != "srv-1" {
		t.Errorf("adopted id: got %q, want srv-1", adopted.ID)
	}
	if _, ok := l.Get(first.ID); ok {
		t.Error("generated id still resolves after adoption")
	}
	if l.Len() != 1 {
		t.Errorf("len: got %d, want 1", l.Len())
	}
}

func TestDeclinedOfferDoesNotAbsorbReoffer(t *testing.T) {
	l := newLedger()
	embedded := models.Offer{SharkID: "elena_brooks", Amount: 100000, EquityPercent: 20}

	first, _ := l.Create(embedded)
	if _, err := l.Resolve(first.ID, models.OfferActionDecline, nil, models.PhaseOffers); err != nil {
		t.Fatalf("decline: %v", err)
	}

	again, created := l.Create(embedded)
	if !created || again.ID == first.ID {
		t.Fatalf("id-less re-offer: created=%v id=%q, want a new offer", created, again.ID)
	}
	if again.Status != models.OfferStatusPending {
		t.Errorf("re-offer status: got %s, want pending", again.Status)
	}

	withID := embedded
	withID.ID = "srv-9"
	adopted, created := l.Create(withID)
	if created || adopted.ID != "srv-9" {
		t.Fatalf("server copy of the re-offer: created=%v id=%q, want adoption as srv-9", created, adopted.ID)
	}

	declined, ok := l.Get(first.ID)
	if !ok || declined.Status != models.OfferStatusDeclined {
		t.Errorf("declined offer: ok=%v status=%s, want declined under its own id", ok, declined.Status)
	}
	pending := l.Pending()
	if len(pending) != 1 || pending[0].ID != "srv-9" {
		t.Errorf("pending: got %+v, want only srv-9", pending)
	}
	if l.Len() != 2 {
		t.Errorf("len: got %d, want 2", l.Len())
	}
}

func TestServerOfferAfterDeclineIsNew(t *testing.T) {
	l := newLedger()
	embedded := models.Offer{SharkID: "elena_brooks", Amount: 100000, EquityPercent: 20}

	first, _ := l.Create(embedded)
	if _, err := l.Resolve(first.ID, models.OfferActionDecline, nil, models.PhaseOffers); err != nil {
		t.Fatalf("decline: %v", err)
	}

	withID := embedded
	withID.ID = "srv-9"
	o, created := l.Create(withID)
	if !created || o.Status != models.OfferStatusPending {
		t.Fatalf("server re-offer: created=%v status=%s, want a new pending offer", created, o.Status)
	}
	if got, _ := l.Get(first.ID); got.Status != models.OfferStatusDeclined {
		t.Errorf("original offer status: got %s, want declined", got.Status)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	l := newLedger()
	l.Create(models.Offer{ID: "o1", SharkID: "elena_brooks", Amount: 500000, EquityPercent: 20})

	got, err := l.Resolve("o1", models.OfferActionDecline, nil, models.PhaseOffers)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if got.Status != models.OfferStatusDeclined {
		t.Errorf("status: got %s, want declined", got.Status)
	}

	_, err = l.Resolve("o1", models.OfferActionAccept, nil, models.PhaseOffers)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second resolve: got %v, want ErrAlreadyResolved", err)
	}
	if o, _ := l.Get("o1"); o.Status != models.OfferStatusDeclined {
		t.Errorf("terminal state changed to %s", o.Status)
	}
}

func TestResolveAfterAcceptReportsAlreadyResolvedEvenWhenClosed(t *testing.T) {
	l := newLedger()
	l.Create(models.Offer{ID: "o1", SharkID: "elena_brooks", Amount: 500000, EquityPercent: 20})
	if _, err := l.Resolve("o1", models.OfferActionAccept, nil, models.PhaseQA); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := l.Resolve("o1", models.OfferActionAccept, nil, models.PhaseClosed)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("got %v, want ErrAlreadyResolved", err)
	}
}

func TestResolveErrors(t *testing.T) {
	l := newLedger()
	l.Create(models.Offer{ID: "o1", SharkID: "marcus_kellan", Amount: 100, EquityPercent: 5})

	tests := []struct {
		name   string
		id     string
		action models.OfferAction
		phase  models.Phase
		want   error
	}{
		{"unknown", "nope", models.OfferActionAccept, models.PhaseQA, ErrUnknownOffer},
		{"pitch phase", "o1", models.OfferActionAccept, models.PhasePitch, ErrPhaseForbidsAction},
		{"closed phase", "o1", models.OfferActionDecline, models.PhaseClosed, ErrPhaseForbidsAction},
		{"bad action", "o1", models.OfferAction("shrug"), models.PhaseQA, ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Resolve(tt.id, tt.action, nil, tt.phase)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if o, _ := l.Get("o1"); o.Status != models.OfferStatusPending {
		t.Errorf("failed resolves changed status to %s", o.Status)
	}
}

func TestCounterSupersededByNewOffer(t *testing.T) {
	l := newLedger()
	l.Create(models.Offer{ID: "o1", SharkID: "richard_hale", Amount: 200000, EquityPercent: 30})

	terms := &models.CounterTerms{Amount: 200000, EquityPercent: 15}
	got, err := l.Resolve("o1", models.OfferActionCounter, terms, models.PhaseOffers)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if !got.AwaitingResponse() || got.Counter == nil || got.Counter.EquityPercent != 15 {
		t.Fatalf("countered offer: %+v", got)
	}
	if l.AllDeclined() {
		t.Error("an offer awaiting a response is not declined")
	}

	l.Create(models.Offer{ID: "o2", SharkID: "richard_hale", Amount: 200000, EquityPercent: 20})
	if o, _ := l.Get("o1"); o.AwaitingResponse() {
		t.Error("countered offer should be superseded by the new offer")
	}
	if len(l.Pending()) != 1 {
		t.Errorf("pending: got %d, want 1", len(l.Pending()))
	}
}

func TestAllDeclinedAndAccepted(t *testing.T) {
	l := newLedger()
	if l.AllDeclined() {
		t.Error("empty ledger is not all-declined")
	}
	l.Create(models.Offer{ID: "a", SharkID: "marcus_kellan", Amount: 1, EquityPercent: 1})
	l.Create(models.Offer{ID: "b", SharkID: "victor_slate", Amount: 2, EquityPercent: 2})
	l.Resolve("a", models.OfferActionDecline, nil, models.PhaseOffers)
	l.Resolve("b", models.OfferActionCounter, nil, models.PhaseOffers)
	if l.AllDeclined() {
		t.Error("countered offer still awaiting a response")
	}
	l.SupersedeFor("victor_slate")
	if !l.AllDeclined() {
		t.Error("want all-declined once the counter is superseded")
	}
	if _, ok := l.Accepted(); ok {
		t.Error("no offer was accepted")
	}

	all := l.All()
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("arrival order: %+v", all)
	}
}
