package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	stepCreateIdentity = "create_identity"
	stepUpsertProfile  = "upsert_profile"

	defaultCompensationTimeout = 10 * time.Second
)

// Coordinator keeps the identity directory and the profile store consistent
// and issues session tokens from their combined state. It holds no mutable
// state and is safe for concurrent use.
type Coordinator struct {
	directory           IdentityDirectory
	profiles            ProfileStore
	tokens              *TokenService
	resetRedirectURL    string
	compensationTimeout time.Duration
	logger              Logger
	activitySink        ActivitySink
	metrics             Metrics
	now                 func() time.Time
}

// NewCoordinator returns a Coordinator wired to the given collaborators.
func NewCoordinator(directory IdentityDirectory, profiles ProfileStore, cfg Config) *Coordinator {
	timeout := cfg.GetCompensationTimeout()
	if timeout <= 0 {
		timeout = defaultCompensationTimeout
	}

	return &Coordinator{
		directory:           directory,
		profiles:            profiles,
		tokens:              NewTokenService(cfg),
		resetRedirectURL:    cfg.GetPasswordResetRedirectURL(),
		compensationTimeout: timeout,
		logger:              defaultLogger(),
		activitySink:        noopActivitySink{},
		metrics:             noopMetrics{},
		now:                 time.Now,
	}
}

// WithLogger sets the logger
func (c *Coordinator) WithLogger(logger Logger) *Coordinator {
	if logger != nil {
		c.logger = logger
		c.tokens.WithLogger(logger)
	}
	return c
}

// WithLoggerProvider resolves scoped loggers for the coordinator and its
// token service.
func (c *Coordinator) WithLoggerProvider(provider LoggerProvider) *Coordinator {
	c.logger = ResolveLogger("accounts.coordinator", provider, c.logger)
	c.tokens.WithLoggerProvider(provider)
	return c
}

// WithActivitySink configures an ActivitySink for emitting account events.
func (c *Coordinator) WithActivitySink(sink ActivitySink) *Coordinator {
	c.activitySink = normalizeActivitySink(sink)
	return c
}

// WithMetrics configures the metrics recorder.
func (c *Coordinator) WithMetrics(metrics Metrics) *Coordinator {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	c.metrics = metrics
	return c
}

// WithTokenService replaces the token service built from config.
func (c *Coordinator) WithTokenService(tokens *TokenService) *Coordinator {
	if tokens != nil {
		c.tokens = tokens
	}
	return c
}

// WithClock overrides the time source for event timestamps.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	if now != nil {
		c.now = now
	}
	return c
}

// TokenService returns the token service used to issue and verify tokens.
func (c *Coordinator) TokenService() *TokenService {
	return c.tokens
}

// Register creates the identity and its profile as one logical unit and
// returns the composed user with a fresh token pair.
func (c *Coordinator) Register(ctx context.Context, input RegisterInput) (result *AuthResult, err error) {
	defer c.finish(ctx, "register", c.now(), &err)

	input.Email = NormalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)
	if err := validateRegistration(input); err != nil {
		return nil, err
	}
	role, _ := ParseRole(string(input.Role))
	input.Role = role

	existing, lookupErr := c.profiles.FindByEmail(ctx, input.Email)
	switch {
	case lookupErr == nil && existing != nil:
		return nil, NewError(ErrEmailTaken, nil, map[string]any{"detected_by": "profile_store"})
	case lookupErr != nil && !IsNotFound(lookupErr):
		// the directory's uniqueness check below is authoritative
		c.logger.Warn("register profile pre-check failed", "error", lookupErr)
	}

	var identity *Identity
	var profile *Profile
	state := c.transition("", AccountStateNonExistent, AccountStateRegistering)

	failure := newSaga(c.compensationTimeout,
		sagaStep{
			name: stepCreateIdentity,
			do: func(ctx context.Context) error {
				created, err := c.directory.CreateUser(ctx, NewIdentity{
					Email:     input.Email,
					Password:  input.Password,
					Confirmed: true,
					Metadata: map[string]any{
						"full_name": input.FullName,
						"role":      string(input.Role),
					},
				})
				if err != nil {
					return c.classifyCreateIdentityError(err)
				}
				if created == nil || created.ID == "" {
					return WithMessage(ErrInvalidRequest, "User registration failed", nil)
				}
				identity = created
				c.logger.Debug("register identity created", "identity_id", identity.ID)
				return nil
			},
			undo: func(ctx context.Context) error {
				return c.directory.DeleteUser(ctx, identity.ID)
			},
		},
		sagaStep{
			name: stepUpsertProfile,
			do: func(ctx context.Context) error {
				now := c.now()
				stored, err := c.profiles.Upsert(ctx, &Profile{
					ID:            identity.ID,
					Email:         input.Email,
					FullName:      input.FullName,
					Role:          input.Role,
					EmailVerified: true,
					CreatedAt:     &now,
					UpdatedAt:     &now,
				})
				if err != nil {
					return err
				}
				profile = stored
				return nil
			},
		},
	).run(ctx)

	if failure != nil {
		return nil, c.handleRegistrationFailure(ctx, input, identity, state, failure)
	}

	if profile == nil {
		profile = &Profile{
			ID:            identity.ID,
			Email:         input.Email,
			FullName:      input.FullName,
			Role:          input.Role,
			EmailVerified: true,
		}
	}

	tokens, err := c.tokens.IssuePair(ClaimSet{
		IdentityID: identity.ID,
		Email:      input.Email,
		Role:       input.Role,
	})
	if err != nil {
		return nil, NewError(ErrInternal, err, nil)
	}

	state = c.transition(identity.ID, state, AccountStateProvisioned)
	c.logger.Info("account registered", "identity_id", identity.ID, "role", input.Role)
	c.emit(ctx, ActivityEventRegistered, identity.ID, state, map[string]any{
		"email": input.Email,
		"role":  string(input.Role),
	})

	user := userView(profile)
	user.EmailVerified = true

	return &AuthResult{
		User:   user,
		Tokens: tokens,
	}, nil
}

func (c *Coordinator) classifyCreateIdentityError(err error) error {
	switch {
	case HasTextCode(err, TextCodeIdentityExists):
		return NewError(ErrEmailTaken, nil, map[string]any{"detected_by": "identity_directory"})
	case isContextError(err):
		return NewError(ErrInternal, err, nil)
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil {
		switch KindOf(richErr) {
		case KindInvalidRequest, KindConflict:
			return WithMessage(ErrInvalidRequest, richErr.Message, err)
		}
	}

	c.logger.Error("register directory create failed", "error", err)
	return NewError(ErrInternal, err, nil)
}

func (c *Coordinator) handleRegistrationFailure(ctx context.Context, input RegisterInput, identity *Identity, state AccountState, failure *sagaFailure) error {
	if failure.step == stepCreateIdentity {
		state = c.transition("", state, AccountStateNonExistent)
		c.emit(ctx, ActivityEventRegistrationFailure, "", state, map[string]any{
			"email": input.Email,
			"step":  failure.step,
			"kind":  string(KindOf(failure.err)),
		})
		return failure.err
	}

	identityID := ""
	if identity != nil {
		identityID = identity.ID
	}

	c.logger.Error("register profile upsert failed",
		"identity_id", identityID,
		"error", failure.err,
	)

	for _, comp := range failure.compensations {
		c.metrics.RecordCompensation(comp.step, comp.err == nil)
	}

	if failure.compensated() {
		state = c.transition(identityID, state, AccountStateNonExistent)
		c.logger.Info("register compensation succeeded", "identity_id", identityID)
		c.emit(ctx, ActivityEventRegistrationCompensate, identityID, state, map[string]any{
			"email": input.Email,
			"step":  failure.step,
		})
	} else {
		state = c.transition(identityID, state, AccountStateDangling)
		for _, comp := range failure.failedCompensations() {
			c.logger.Error("dangling identity: compensation failed",
				"identity_id", identityID,
				"email", input.Email,
				"step", comp.step,
				"error", comp.err,
			)
		}
		c.metrics.RecordDanglingIdentity()
		c.emit(ctx, ActivityEventDanglingIdentity, identityID, state, map[string]any{
			"email": input.Email,
			"step":  failure.step,
		})
	}

	return NewError(ErrProfileCreationFailed, failure.err, map[string]any{
		"identity_id": identityID,
		"state":       string(state),
	})
}

// finish records the outcome of op and converts a collaborator panic into
// an Internal error.
func (c *Coordinator) finish(ctx context.Context, op string, start time.Time, errp *error) {
	if r := recover(); r != nil {
		c.logger.Error("recovered panic in coordinator", "operation", op, "panic", fmt.Sprint(r))
		*errp = NewError(ErrInternal, fmt.Errorf("panic: %v", r), map[string]any{"operation": op})
	}

	if *errp != nil {
		var richErr *errors.Error
		if !errors.As(*errp, &richErr) {
			c.logger.Error("unclassified coordinator error", "operation", op, "error", *errp)
			*errp = NewError(ErrInternal, *errp, map[string]any{"operation": op})
		}
	}

	c.metrics.RecordOperation(op, KindOf(*errp), c.now().Sub(start))
}

func (c *Coordinator) emit(ctx context.Context, eventType ActivityEventType, userID string, state AccountState, metadata map[string]any) {
	sink := normalizeActivitySink(c.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		State:      state,
		Metadata:   metadata,
		OccurredAt: c.now(),
	}
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("activity sink record error", "error", err)
	}
}
