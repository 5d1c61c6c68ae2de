package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"profitpilot/models"
	"profitpilot/services/backend"
	"profitpilot/services/formstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type fakeOps struct {
	mu sync.Mutex

	checkoutReqs  []backend.CheckoutRequest
	checkoutErr   error
	checkoutURL   string
	checkoutStart chan struct{}
	checkoutGate  chan struct{}

	setPasswordReqs   []backend.SetPasswordRequest
	setPasswordTokens []string
	setPasswordResp   *backend.SetPasswordResponse
	setPasswordErr    error
	setPasswordStart  chan struct{}
	setPasswordGate   chan struct{}

	profileReqs   []backend.ProfileUpdateRequest
	profileTokens []string
	profileErr    error

	referenceCalls map[string]int
	referenceErr   map[string]error
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		checkoutURL: "https://pay.example/cs_1",
		setPasswordResp: &backend.SetPasswordResponse{
			User:        backend.ActivatedUser{FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", SubscriptionType: "pro"},
			AccessToken: "access-1",
		},
		referenceCalls: map[string]int{},
		referenceErr:   map[string]error{},
	}
}

func (f *fakeOps) operations() backend.Operations {
	return backend.Operations{Checkout: f, Accounts: f, Reference: f, Profile: f}
}

func (f *fakeOps) CreateCheckoutSession(ctx context.Context, req backend.CheckoutRequest) (*backend.CheckoutResponse, error) {
	f.mu.Lock()
	f.checkoutReqs = append(f.checkoutReqs, req)
	start, gate := f.checkoutStart, f.checkoutGate
	err, url := f.checkoutErr, f.checkoutURL
	f.mu.Unlock()

	if start != nil {
		start <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &backend.CheckoutResponse{URL: url}, nil
}

func (f *fakeOps) SetPassword(ctx context.Context, token string, req backend.SetPasswordRequest) (*backend.SetPasswordResponse, error) {
	f.mu.Lock()
	f.setPasswordReqs = append(f.setPasswordReqs, req)
	f.setPasswordTokens = append(f.setPasswordTokens, token)
	start, gate := f.setPasswordStart, f.setPasswordGate
	resp, err := f.setPasswordResp, f.setPasswordErr
	f.mu.Unlock()

	if start != nil {
		start <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *fakeOps) UpdateProfile(ctx context.Context, token string, req backend.ProfileUpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileReqs = append(f.profileReqs, req)
	f.profileTokens = append(f.profileTokens, token)
	return f.profileErr
}

func (f *fakeOps) reference(name string, records []backend.RawRecord) ([]backend.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.referenceCalls[name]++
	if err := f.referenceErr[name]; err != nil {
		return nil, err
	}
	return records, nil
}

func (f *fakeOps) Categories(context.Context) ([]backend.RawRecord, error) {
	return f.reference("categories", []backend.RawRecord{{"id": float64(1), "name": "Toys"}, {"id": float64(2), "name": "Books"}})
}

func (f *fakeOps) ExperienceLevels(context.Context) ([]backend.RawRecord, error) {
	return f.reference("experience_levels", []backend.RawRecord{{"id": float64(1), "name": "Beginner"}})
}

func (f *fakeOps) Countries(context.Context) ([]backend.RawRecord, error) {
	return f.reference("countries", []backend.RawRecord{{"id": float64(3), "name": "United States"}})
}

func (f *fakeOps) counts() (checkout, setPassword, profile int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkoutReqs), len(f.setPasswordReqs), len(f.profileReqs)
}

func (f *fakeOps) referenceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.referenceCalls {
		total += n
	}
	return total
}

type fakeSink struct {
	mu      sync.Mutex
	records []models.OnboardingRecord
	err     error
}

func (s *fakeSink) Completed(ctx context.Context, record models.OnboardingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.err
}

type harness struct {
	mr     *miniredis.Miniredis
	client *redis.Client
	ops    *fakeOps
	sink   *fakeSink
	events []string
	mu     sync.Mutex
	logger *zap.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &harness{mr: mr, client: client, ops: newFakeOps(), sink: &fakeSink{}}
}

func (h *harness) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *harness) store(sessionID string) *formstore.Store {
	return formstore.New(h.client, sessionID, time.Hour, nil)
}

func (h *harness) controller(sessionID string) *Controller {
	return NewController(Deps{
		Store: h.store(sessionID),
		Ops:   h.ops.operations(),
		Sink:  h.sink,
		Hooks: Hooks{
			OnPersist: func(key string) { h.record("persist:" + key) },
			OnStep: func(from, to models.StepIndex) {
				h.record("step:" + stepName(from) + "->" + stepName(to))
			},
		},
		Config: Config{
			PackageSelectionURL: "https://app.example/pricing",
			DashboardURL:        "https://app.example/dashboard",
			AmazonConnectURL:    "https://api.example/amazon/connect",
			ReferenceTimeout:    time.Second,
		},
		Logger: h.logger,
	})
}

func stepName(s models.StepIndex) string {
	return string(rune('0' + int(s)))
}

func strPtr(s string) *string { return &s }
