package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/archivemint-backend/api/responses"
	"github.com/angelmondragon/archivemint-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/archivemint-backend/pkg/errors"
	"github.com/angelmondragon/archivemint-backend/pkg/logger"
	"github.com/stripe/stripe-go/v84"
)

const maxPayloadBytes = 1 << 16

type reconciler interface {
	Reconcile(ctx context.Context, event *stripe.Event) error
}

type eventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (payments.ClaimState, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

// StripeWebhook verifies and reconciles payment processor events. Finished event ids are
// acknowledged without reprocessing and an id still being processed answers 409 so the
// processor redelivers later. Retryable failures release the id; fatal ones mark it done.
func StripeWebhook(svc reconciler, verifier eventVerifier, guard eventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook handling unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		if len(payload) > maxPayloadBytes {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUpstreamFatal, "payload too large"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUpstreamFatal, "stripe signature missing"))
			return
		}

		event, err := verifier.VerifyEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUpstreamFatal, err, "verify signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithStripeEvent(ctx, event.ID, string(event.Type))
		}

		state, err := guard.Claim(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim event"))
			return
		}
		switch state {
		case payments.ClaimDone:
			responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
			return
		case payments.ClaimInFlight:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "event is being processed"))
			return
		}

		err = svc.Reconcile(ctx, &event)
		settle, step := guard.Complete, "stripe.webhook.complete_failed"
		if err != nil && pkgerrors.Retryable(err) {
			settle, step = guard.Release, "stripe.webhook.release_failed"
		}
		if settleErr := settle(ctx, event.ID); settleErr != nil && logg != nil {
			logg.Error(ctx, step, settleErr)
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe.webhook.processed")
		}
		responses.WriteSuccess(w, map[string]any{"received": true})
	}
}
