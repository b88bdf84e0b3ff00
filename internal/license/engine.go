package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	apierrors "github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/errors"
)

// Store is the persistence surface the engine validates against. It is
// implemented by the SQLite-backed store; tests may substitute their own.
type Store interface {
	// GetLicenseByKey returns the license for a canonical (upper-cased)
	// key, or apierrors.ErrLicenseNotFound.
	GetLicenseByKey(ctx context.Context, key string) (*License, error)

	// GetActivation returns the activation for a (license, machine) pair,
	// or apierrors.ErrActivationNotFound.
	GetActivation(ctx context.Context, licenseID, machineID string) (*Activation, error)

	// CountActivations returns the number of distinct machines currently
	// bound to the license.
	CountActivations(ctx context.Context, licenseID string) (int, error)

	// RecordActivation inserts a new activation row. Returns
	// apierrors.ErrDuplicateActivation if the pair already exists.
	RecordActivation(ctx context.Context, licenseID, machineID string, now time.Time) (*Activation, error)

	// TouchActivation updates last_seen on an existing activation.
	TouchActivation(ctx context.Context, activationID string, now time.Time) error
}

// Engine is the activation state machine. Each Validate call is a single
// bounded unit of work; the engine holds no state between calls beyond the
// per-license lock table.
type Engine struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics

	// locks serializes the count-then-insert region per license so that
	// concurrent new machines cannot overshoot max_activations. Entries
	// are never removed; the table is bounded by the number of licenses
	// ever validated in this process.
	locks sync.Map // license ID -> *sync.Mutex
}

// NewEngine creates an activation engine over the given store. Metrics may
// be nil, in which case outcome counters are not recorded.
func NewEngine(store Store, logger *slog.Logger, metrics *Metrics) *Engine {
	return &Engine{
		store:   store,
		logger:  logger.With(slog.String("component", "activation_engine")),
		metrics: metrics,
	}
}

// Validate decides whether the given (key, machine) pair is entitled, and
// binds the machine to a slot when it is. Policy outcomes (not found,
// revoked, expired, limit reached) are returned in the Verdict; an error
// return means a storage fault and must never be presented as "license
// invalid".
func (e *Engine) Validate(ctx context.Context, key, machineID string, now time.Time) (*Verdict, error) {
	start := time.Now()
	verdict, err := e.validate(ctx, key, machineID, now)
	if err != nil {
		e.metrics.recordFault(ctx)
		return nil, err
	}
	e.metrics.recordVerdict(ctx, verdict, time.Since(start))
	return verdict, nil
}

func (e *Engine) validate(ctx context.Context, key, machineID string, now time.Time) (*Verdict, error) {
	key = NormalizeKey(key)
	if key == "" {
		return &Verdict{Reason: ReasonMissingKey}, nil
	}
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return &Verdict{Reason: ReasonMissingMachineID}, nil
	}

	lic, err := e.store.GetLicenseByKey(ctx, key)
	if err != nil {
		if errors.Is(err, apierrors.ErrLicenseNotFound) {
			return &Verdict{Reason: ReasonNotFound}, nil
		}
		return nil, fmt.Errorf("license: looking up key: %w", err)
	}

	if lic.Revoked {
		return &Verdict{Reason: ReasonRevoked}, nil
	}

	// Expiration is an absolute disqualifier checked before any capacity
	// logic. An unparseable stored expiry fails closed.
	expiresAt, hasExpiry, parseErr := lic.ExpiresAt()
	if parseErr != nil {
		e.logger.WarnContext(ctx, "stored expiration is unparseable, treating as expired",
			slog.String("license_id", lic.ID),
			slog.String("expires_at", lic.ExpiresRaw))
		return &Verdict{Reason: ReasonExpired}, nil
	}
	if hasExpiry && now.After(expiresAt) {
		return &Verdict{Reason: ReasonExpired}, nil
	}

	count, err := e.bindMachine(ctx, lic, machineID, now)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return &Verdict{Reason: ReasonActivationLimit}, nil
	}

	remaining := lic.MaxActivations - count
	if remaining < 0 {
		remaining = 0
	}
	return &Verdict{
		Valid:                true,
		Key:                  lic.Key,
		ExpiresAt:            lic.ExpiresRaw,
		RemainingActivations: remaining,
		Notes:                lic.Notes,
	}, nil
}

// bindMachine touches the machine's existing activation or consumes a free
// slot, returning the activation count after the call. A negative count
// means the license is at capacity and the machine holds no slot.
//
// The whole read-count-and-conditionally-insert sequence runs under the
// license's mutex. If a concurrent call for the same machine races past the
// existence check anyway, the store's uniqueness constraint turns the
// second insert into ErrDuplicateActivation, which is recovered as the
// already-bound branch.
func (e *Engine) bindMachine(ctx context.Context, lic *License, machineID string, now time.Time) (int, error) {
	mu := e.lockFor(lic.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := e.store.GetActivation(ctx, lic.ID, machineID)
	switch {
	case err == nil:
		// An already-bound machine is never evicted by capacity checks:
		// lowering max_activations after the fact only limits new
		// bindings.
		if err := e.store.TouchActivation(ctx, existing.ID, now); err != nil {
			return 0, fmt.Errorf("license: touching activation: %w", err)
		}
		return e.countAfter(ctx, lic.ID)
	case errors.Is(err, apierrors.ErrActivationNotFound):
		// Fall through to the capacity check.
	default:
		return 0, fmt.Errorf("license: looking up activation: %w", err)
	}

	count, err := e.store.CountActivations(ctx, lic.ID)
	if err != nil {
		return 0, fmt.Errorf("license: counting activations: %w", err)
	}
	if count >= lic.MaxActivations {
		return -1, nil
	}

	if _, err := e.store.RecordActivation(ctx, lic.ID, machineID, now); err != nil {
		if errors.Is(err, apierrors.ErrDuplicateActivation) {
			// A concurrent call already bound this same machine. Recover
			// as the already-present branch rather than surface an error.
			e.logger.DebugContext(ctx, "duplicate activation recovered as touch",
				slog.String("license_id", lic.ID))
			racedWinner, getErr := e.store.GetActivation(ctx, lic.ID, machineID)
			if getErr != nil {
				return 0, fmt.Errorf("license: refetching raced activation: %w", getErr)
			}
			if touchErr := e.store.TouchActivation(ctx, racedWinner.ID, now); touchErr != nil {
				return 0, fmt.Errorf("license: touching raced activation: %w", touchErr)
			}
			return e.countAfter(ctx, lic.ID)
		}
		return 0, fmt.Errorf("license: recording activation: %w", err)
	}
	e.metrics.recordActivation(ctx)
	return e.countAfter(ctx, lic.ID)
}

func (e *Engine) countAfter(ctx context.Context, licenseID string) (int, error) {
	count, err := e.store.CountActivations(ctx, licenseID)
	if err != nil {
		return 0, fmt.Errorf("license: counting activations: %w", err)
	}
	return count, nil
}

func (e *Engine) lockFor(licenseID string) *sync.Mutex {
	if mu, ok := e.locks.Load(licenseID); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := e.locks.LoadOrStore(licenseID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
