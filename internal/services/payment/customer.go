package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GalaDe/payment-portal/internal/domain"
	"github.com/GalaDe/payment-portal/internal/services/dwolla"
	"github.com/GalaDe/payment-portal/internal/services/stripe"
)

const resolveTimeout = 30 * time.Second

// CustomerDirectory is a provider's customer store, keyed by identity email.
type CustomerDirectory interface {
	Provider() string
	// FindCustomer returns "" when no customer exists for identity.
	FindCustomer(ctx context.Context, identity domain.Identity) (string, error)
	CreateCustomer(ctx context.Context, identity domain.Identity) (domain.Resolved, error)
}

/*
CustomerResolver resolves the provider-side customer for the configured
identity, creating it when absent. Concurrent resolutions of the same identity
share one in-flight call, and the lookup-then-create sequence runs under a lock
keyed by provider and email so separate processes sharing a Locker do not race
either.
*/
type CustomerResolver struct {
	directory CustomerDirectory
	identity  domain.Identity
	locker    domain.Locker
	group     singleflight.Group
	logger    *zap.Logger
}

func NewCustomerResolver(directory CustomerDirectory, identity domain.Identity, locker domain.Locker, logger *zap.Logger) *CustomerResolver {
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &CustomerResolver{
		directory: directory,
		identity:  identity,
		locker:    locker,
		logger:    logger.With(zap.String("provider", directory.Provider())),
	}
}

func (r *CustomerResolver) Resolve(ctx context.Context) (string, error) {
	key := r.directory.Provider() + ":" + strings.ToLower(r.identity.Email)

	ch := r.group.DoChan(key, func() (interface{}, error) {
		// The flight outlives any single caller's request.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		var id string
		err := r.locker.WithLock(ctx, key, func(ctx context.Context) error {
			existing, err := r.directory.FindCustomer(ctx, r.identity)
			if err != nil {
				return err
			}
			if existing != "" {
				id = existing
				return nil
			}

			res, err := r.directory.CreateCustomer(ctx, r.identity)
			if err != nil {
				return err
			}
			r.logger.Info("customer resolved",
				zap.String("customer_id", res.ID),
				zap.Stringer("outcome", res.Outcome))
			id = res.ID
			return nil
		})
		return id, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			r.logger.Debug("customer resolution shared with concurrent caller")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		kind, ok := domain.TransportKind(ctx.Err())
		if !ok {
			kind = domain.KindTransient
		}
		return "", domain.NewProviderError(r.directory.Provider(), kind,
			"customer resolution abandoned", ctx.Err().Error(), ctx.Err())
	}
}

// StripeCustomers adapts the card processor's customer API.
type StripeCustomers struct {
	Service stripe.StripeService
}

func (s StripeCustomers) Provider() string { return "stripe" }

func (s StripeCustomers) FindCustomer(ctx context.Context, identity domain.Identity) (string, error) {
	cust, err := s.Service.FindCustomerByEmail(ctx, identity.Email)
	if err != nil || cust == nil {
		return "", err
	}
	return cust.ID, nil
}

func (s StripeCustomers) CreateCustomer(ctx context.Context, identity domain.Identity) (domain.Resolved, error) {
	cust, err := s.Service.CreateCustomer(ctx, &stripe.CreateStripeCustomerInput{
		Identity:       identity,
		IdempotencyKey: CustomerIdempotencyKey(identity),
	})
	if err != nil {
		return domain.Resolved{}, err
	}
	return domain.Created(cust.ID), nil
}

// CustomerIdempotencyKey is stable for an email, so a replayed create returns
// the customer created by the first call instead of a second one.
func CustomerIdempotencyKey(identity domain.Identity) string {
	return "customer-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(identity.Email))).String()
}

// DwollaCustomers adapts the ACH network's receive-only customer API.
type DwollaCustomers struct {
	Service dwolla.DwollaService
}

func (d DwollaCustomers) Provider() string { return "dwolla" }

func (d DwollaCustomers) FindCustomer(ctx context.Context, identity domain.Identity) (string, error) {
	cust, err := d.Service.FindCustomerByEmail(ctx, identity.Email)
	if err != nil || cust == nil {
		return "", err
	}
	return cust.ID, nil
}

func (d DwollaCustomers) CreateCustomer(ctx context.Context, identity domain.Identity) (domain.Resolved, error) {
	return d.Service.CreateReceiveOnlyCustomer(ctx, identity)
}
