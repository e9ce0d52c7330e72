// Package state owns the mutable extension state: collect consent, the
// time-bounded location-hint cache, and the implementation details derived
// from the event hub's published state.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/jonboulle/clockwork"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
	"github.com/telemetry-sdk/edge-delivery/internal/domain/repo"
	"github.com/telemetry-sdk/edge-delivery/internal/version"
)

const (
	hubStateOwner        = "com.adobe.module.eventhub"
	consentExtensionName = "com.adobe.edge.consent"

	propLocationHint       = "locationHint"
	propLocationHintExpiry = "locationHintExpiryTimestamp"

	// SharedLocationHintKey names the location hint in this extension's own
	// published shared state and in state:store response entries.
	SharedLocationHintKey = "locationHint"

	implementationDetailsBaseName = "https://ns.adobe.com/experience/mobilesdk/go"
)

// Extension is the single source of truth for consent, the location hint and
// derived identification metadata. Readers may call it from any goroutine;
// each operation is individually atomic.
type Extension struct {
	mu sync.Mutex

	hub       SharedStateHub
	publisher repo.SharedStatePublisher
	props     repo.PropertyStore
	clock     clockwork.Clock
	logger    *logr.Logger

	booted     bool
	consent    entity.ConsentStatus
	hint       string
	hintExpiry time.Time

	implementationDetails map[string]any
}

func NewExtension(hub SharedStateHub, publisher repo.SharedStatePublisher, props repo.PropertyStore, clock clockwork.Clock) *Extension {
	return &Extension{
		hub:       hub,
		publisher: publisher,
		props:     props,
		clock:     clock,
		consent:   entity.ConsentPending,
	}
}

func (e *Extension) WithLogger(logger logr.Logger) *Extension {
	e.logger = &logger

	return e
}

// BootupIfNeeded synchronizes with the hub's published state exactly once.
// It returns false without error while the hub still reports PENDING; the
// caller retries later. Once it returns true, subsequent calls are no-ops.
func (e *Extension) BootupIfNeeded(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.booted {
		return true, nil
	}

	hubState, err := e.hub.GetSharedState(ctx, hubStateOwner)
	if err != nil {
		return false, fmt.Errorf("failed to read hub shared state: %w", err)
	}

	if hubState.Status == entity.SharedStatePending {
		e.logInfo(1, "Hub shared state pending, deferring bootup")

		return false, nil
	}

	e.loadPropertiesLocked(ctx)

	e.implementationDetails = buildImplementationDetails(hubState.Data)

	if !hasConsentExtension(hubState.Data) {
		// No consent module registered at all: collection is implicitly
		// granted, once, at bootup. Never re-evaluated afterwards.
		e.consent = entity.ConsentYes
	}

	err = e.publisher.CreateSharedState(ctx, e.ownSharedStateLocked())
	if err != nil {
		return false, fmt.Errorf("failed to publish initial shared state: %w", err)
	}

	e.booted = true

	e.logInfo(0, "Extension booted",
		"consent", e.consent,
		"locationHint", e.hint,
	)

	return true, nil
}

// LocationHint returns the cached hint, absent once its expiry has passed.
func (e *Extension) LocationHint() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.effectiveHintLocked()
}

// SetLocationHint persists the hint with expiry now+ttl, or clears it when
// hint is empty. The extension's shared state is republished only when the
// effective value changes: same hint with a fresh ttl is not a change, same
// hint after the previous one expired is.
func (e *Extension) SetLocationHint(ctx context.Context, hint string, ttl time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous, hadPrevious := e.effectiveHintLocked()

	var persistErr error

	if hint == "" {
		e.hint = ""
		e.hintExpiry = time.Time{}

		persistErr = e.removePropertiesLocked(ctx)
	} else {
		e.hint = hint
		e.hintExpiry = e.clock.Now().Add(ttl)

		persistErr = e.storePropertiesLocked(ctx)
	}

	// Shared state is published only after the hint is persisted, so the
	// published value never gets ahead of storage.
	if persistErr != nil {
		return fmt.Errorf("failed to persist location hint: %w", persistErr)
	}

	changed := hadPrevious != (hint != "") || (hadPrevious && previous != hint)
	if changed {
		err := e.publisher.CreateSharedState(ctx, e.ownSharedStateLocked())
		if err != nil {
			return fmt.Errorf("failed to publish shared state: %w", err)
		}
	}

	return nil
}

// CollectConsent returns the current consent decision.
func (e *Extension) CollectConsent() entity.ConsentStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.consent
}

// SetCollectConsent applies a consent update. It affects subsequently
// dequeued work only, never work already dispatched.
func (e *Extension) SetCollectConsent(status entity.ConsentStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consent = status
}

// ImplementationDetails returns a copy of the SDK descriptor derived at boot,
// empty before bootup completes.
func (e *Extension) ImplementationDetails() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	ret, err := entity.CloneMap(e.implementationDetails)
	if err != nil { // Closed value set, clone cannot fail
		return map[string]any{}
	}

	return ret
}

func (e *Extension) effectiveHintLocked() (string, bool) {
	if e.hint == "" {
		return "", false
	}

	if !e.clock.Now().Before(e.hintExpiry) {
		return "", false
	}

	return e.hint, true
}

// loadPropertiesLocked populates the in-memory hint from storage. A storage
// failure degrades to an absent hint rather than failing bootup.
func (e *Extension) loadPropertiesLocked(ctx context.Context) {
	hint, found, err := e.props.GetString(ctx, propLocationHint)
	if err != nil {
		e.logError(err, "Failed to load persisted location hint")

		return
	}

	if !found || hint == "" {
		return
	}

	expiry, found, err := e.props.GetInt64(ctx, propLocationHintExpiry)
	if err != nil {
		e.logError(err, "Failed to load persisted location hint expiry")

		return
	}

	if !found {
		return
	}

	expiryTime := time.Unix(expiry, 0)
	if !e.clock.Now().Before(expiryTime) {
		return
	}

	e.hint = hint
	e.hintExpiry = expiryTime
}

func (e *Extension) storePropertiesLocked(ctx context.Context) error {
	err := e.props.SetString(ctx, propLocationHint, e.hint)
	if err != nil {
		return err
	}

	return e.props.SetInt64(ctx, propLocationHintExpiry, e.hintExpiry.Unix())
}

func (e *Extension) removePropertiesLocked(ctx context.Context) error {
	err := e.props.Remove(ctx, propLocationHint)
	if err != nil {
		return err
	}

	return e.props.Remove(ctx, propLocationHintExpiry)
}

func (e *Extension) ownSharedStateLocked() map[string]any {
	ret := map[string]any{}

	hint, found := e.effectiveHintLocked()
	if found {
		ret[SharedLocationHintKey] = hint
	}

	return ret
}

func (e *Extension) logInfo(level int, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.V(level).Info(msg, keysAndValues...)
}

func (e *Extension) logError(err error, msg string, keysAndValues ...any) {
	if e.logger == nil {
		return
	}

	e.logger.Error(err, msg, keysAndValues...)
}

func buildImplementationDetails(hubData map[string]any) map[string]any {
	hubVersion := "unknown"
	if v, ok := hubData["version"].(string); ok && v != "" {
		hubVersion = v
	}

	name := implementationDetailsBaseName

	if wrapper, ok := hubData["wrapper"].(map[string]any); ok {
		if wrapperType, ok := wrapper["type"].(string); ok {
			if suffix := wrapperSuffix(wrapperType); suffix != "" {
				name = name + "/" + suffix
			}
		}
	}

	return map[string]any{
		"name":        name,
		"version":     hubVersion + "+" + version.Version,
		"environment": "app",
	}
}

func wrapperSuffix(wrapperType string) string {
	switch wrapperType {
	case "R":
		return "reactnative"
	case "F":
		return "flutter"
	default:
		return ""
	}
}

func hasConsentExtension(hubData map[string]any) bool {
	extensions, ok := hubData["extensions"].(map[string]any)
	if !ok {
		return false
	}

	_, found := extensions[consentExtensionName]

	return found
}
