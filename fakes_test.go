package accounts_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
)

type testConfig struct {
	accessSecret        string
	refreshSecret       string
	accessTTL           time.Duration
	refreshTTL          time.Duration
	issuer              string
	redirectURL         string
	compensationTimeout time.Duration
}

func newTestConfig() *testConfig {
	return &testConfig{
		accessSecret:        "access-secret-for-tests",
		refreshSecret:       "refresh-secret-for-tests",
		accessTTL:           15 * time.Minute,
		refreshTTL:          30 * 24 * time.Hour,
		issuer:              "accounts-test",
		redirectURL:         "http://localhost:3000/reset-password",
		compensationTimeout: time.Second,
	}
}

func (c *testConfig) GetAccessTokenSecret() string          { return c.accessSecret }
func (c *testConfig) GetRefreshTokenSecret() string         { return c.refreshSecret }
func (c *testConfig) GetAccessTokenTTL() time.Duration      { return c.accessTTL }
func (c *testConfig) GetRefreshTokenTTL() time.Duration     { return c.refreshTTL }
func (c *testConfig) GetIssuer() string                     { return c.issuer }
func (c *testConfig) GetPasswordResetRedirectURL() string   { return c.redirectURL }
func (c *testConfig) GetCompensationTimeout() time.Duration { return c.compensationTimeout }

type directoryUser struct {
	identity accounts.Identity
	password string
	sessions int
}

// memoryDirectory is an in-memory IdentityDirectory. The hook fields let a
// test inject failures per call.
type memoryDirectory struct {
	mu    sync.Mutex
	users map[string]*directoryUser

	createErr     error
	deleteErr     error
	invalidateErr error
	resetErr      error
	applyErr      error
	panicOnAuth   bool

	createCalls      int
	deleteCalls      int
	deleteCtxErr     error
	resetRedirects   []string
	appliedTokens    []string
	invalidatedUsers []string
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: map[string]*directoryUser{}}
}

func (d *memoryDirectory) CreateUser(ctx context.Context, input accounts.NewIdentity) (*accounts.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.createCalls++
	if d.createErr != nil {
		return nil, d.createErr
	}

	for _, u := range d.users {
		if strings.EqualFold(u.identity.Email, input.Email) {
			return nil, accounts.ErrIdentityExists
		}
	}

	now := time.Now()
	identity := accounts.Identity{
		ID:       uuid.NewString(),
		Email:    input.Email,
		Metadata: input.Metadata,
	}
	if input.Confirmed {
		identity.EmailConfirmedAt = &now
	}

	d.users[identity.ID] = &directoryUser{identity: identity, password: input.Password}
	out := identity
	return &out, nil
}

func (d *memoryDirectory) Authenticate(ctx context.Context, email, password string) (*accounts.Identity, error) {
	if d.panicOnAuth {
		panic("directory exploded")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.identity.Email, email) {
			if u.password != password {
				return nil, accounts.ErrBadCredentials
			}
			out := u.identity
			return &out, nil
		}
	}
	return nil, accounts.ErrBadCredentials
}

func (d *memoryDirectory) DeleteUser(ctx context.Context, identityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deleteCalls++
	d.deleteCtxErr = ctx.Err()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	delete(d.users, identityID)
	return nil
}

func (d *memoryDirectory) InvalidateSessions(ctx context.Context, identityID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.invalidateErr != nil {
		return d.invalidateErr
	}
	d.invalidatedUsers = append(d.invalidatedUsers, identityID)
	if u, ok := d.users[identityID]; ok {
		u.sessions++
	}
	return nil
}

func (d *memoryDirectory) RequestReset(ctx context.Context, email, redirectTo string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.resetErr != nil {
		return d.resetErr
	}
	d.resetRedirects = append(d.resetRedirects, redirectTo)
	return nil
}

func (d *memoryDirectory) ApplyReset(ctx context.Context, recoveryToken, newPassword string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.applyErr != nil {
		return d.applyErr
	}
	d.appliedTokens = append(d.appliedTokens, recoveryToken)
	return nil
}

func (d *memoryDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

func (d *memoryDirectory) has(identityID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.users[identityID]
	return ok
}

func (d *memoryDirectory) firstID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id := range d.users {
		return id
	}
	return ""
}

// memoryProfiles is an in-memory ProfileStore.
type memoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]accounts.Profile

	findErr       error
	upsertErr     error
	updateErr     error
	panicOnUpsert bool
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{profiles: map[string]accounts.Profile{}}
}

func (s *memoryProfiles) FindByEmail(ctx context.Context, email string) (*accounts.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, p := range s.profiles {
		if p.Email == email {
			out := p
			return &out, nil
		}
	}
	return nil, accounts.ErrRecordNotFound
}

func (s *memoryProfiles) FindByID(ctx context.Context, identityID string) (*accounts.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.profiles[identityID]
	if !ok {
		return nil, accounts.ErrRecordNotFound
	}
	return &p, nil
}

func (s *memoryProfiles) Upsert(ctx context.Context, profile *accounts.Profile) (*accounts.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.panicOnUpsert {
		panic("profile store exploded")
	}
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.profiles[profile.ID] = *profile
	out := *profile
	return &out, nil
}

func (s *memoryProfiles) Update(ctx context.Context, identityID string, update accounts.ProfileUpdate) (*accounts.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return nil, s.updateErr
	}
	p, ok := s.profiles[identityID]
	if !ok {
		return nil, accounts.ErrRecordNotFound
	}
	if update.FullName != nil {
		p.FullName = *update.FullName
	}
	if update.PhoneNumber != nil {
		p.PhoneNumber = *update.PhoneNumber
	}
	if update.Role != nil {
		p.Role = *update.Role
	}
	now := time.Now()
	p.UpdatedAt = &now
	s.profiles[identityID] = p
	out := p
	return &out, nil
}

func (s *memoryProfiles) setRole(identityID string, role accounts.UserRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profiles[identityID]
	p.Role = role
	s.profiles[identityID] = p
}

func (s *memoryProfiles) remove(identityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, identityID)
}

func (s *memoryProfiles) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []accounts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *recordingSink) last() accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return accounts.ActivityEvent{}
	}
	return s.events[len(s.events)-1]
}

type recordingMetrics struct {
	mu            sync.Mutex
	operations    map[string][]accounts.ErrorKind
	compensations map[string][]bool
	dangling      int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		operations:    map[string][]accounts.ErrorKind{},
		compensations: map[string][]bool{},
	}
}

func (m *recordingMetrics) RecordOperation(operation string, kind accounts.ErrorKind, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations[operation] = append(m.operations[operation], kind)
}

func (m *recordingMetrics) RecordCompensation(step string, succeeded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compensations[step] = append(m.compensations[step], succeeded)
}

func (m *recordingMetrics) RecordDanglingIdentity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dangling++
}

type harness struct {
	directory   *memoryDirectory
	profiles    *memoryProfiles
	sink        *recordingSink
	metrics     *recordingMetrics
	config      *testConfig
	coordinator *accounts.Coordinator
}

func newHarness() *harness {
	h := &harness{
		directory: newMemoryDirectory(),
		profiles:  newMemoryProfiles(),
		sink:      &recordingSink{},
		metrics:   newRecordingMetrics(),
		config:    newTestConfig(),
	}
	h.coordinator = accounts.NewCoordinator(h.directory, h.profiles, h.config).
		WithActivitySink(h.sink).
		WithMetrics(h.metrics)
	return h
}

func validRegistration() accounts.RegisterInput {
	return accounts.RegisterInput{
		Email:    "Ada@Example.com ",
		Password: "correct-horse",
		FullName: "Ada Lovelace",
	}
}
