package checkout

import (
	"context"
	"sync"
	"time"

	"vistream/billing-service/internal/gateway"
	"vistream/billing-service/internal/order"
	"vistream/billing-service/internal/plan"

	"github.com/google/uuid"
)

const (
	testCreateSecret = "create-secret"
	testIPNSecret    = "ipn-secret"
	testReturnSecret = "return-secret"
)

type fakeCatalog struct {
	plans map[string]*plan.Plan
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{plans: map[string]*plan.Plan{
		"standard": {Code: "standard", Name: "Standard", PriceMonthly: 129000, DurationDays: 30, Active: true},
		"premium":  {Code: "premium", Name: "Premium", PriceMonthly: 219000, PriceYearly: 2190000, DurationDays: 30, Active: true},
		"legacy":   {Code: "legacy", Name: "Legacy", PriceMonthly: 99000, DurationDays: 30, Active: false},
	}}
}

func (c *fakeCatalog) ByCode(_ context.Context, code string) (*plan.Plan, error) {
	p, ok := c.plans[code]
	if !ok {
		return nil, plan.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

// fakeOrderStore reproduces the store's conditional-transition semantics
// under a mutex so concurrency tests exercise the same guard the SQL
// version provides.
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*order.Order{}}
}

func (s *fakeOrderStore) put(o *order.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
}

func (s *fakeOrderStore) Create(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Status = order.StatusPending
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) Get(_ context.Context, id string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) SetPayURL(_ context.Context, id, payURL string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		o.PayURL = payURL
		o.CreateResponse = raw
	}
	return nil
}

func (s *fakeOrderStore) MarkPaid(_ context.Context, id, transID string, raw []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusPaid
	o.TransID = transID
	o.CallbackPayload = raw
	return true, nil
}

func (s *fakeOrderStore) MarkFailed(_ context.Context, id, reason string, raw []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != order.StatusPending {
		return false, nil
	}
	o.Status = order.StatusFailed
	o.FailReason = reason
	o.CallbackPayload = raw
	return true, nil
}

func (s *fakeOrderStore) ForceStatus(_ context.Context, id string, target order.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status == order.StatusPaid {
		return false, nil
	}
	o.Status = target
	return true, nil
}

// fakeLedger applies the real extend-vs-replace rule so idempotence tests
// can assert on the resulting expiry.
type fakeLedger struct {
	mu          sync.Mutex
	activations int
	expiry      map[uuid.UUID]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{expiry: map[uuid.UUID]time.Time{}}
}

func (l *fakeLedger) Activate(_ context.Context, userID uuid.UUID, _ string, durationDays int) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activations++

	now := time.Now()
	base := now
	if cur, ok := l.expiry[userID]; ok && cur.After(now) {
		base = cur
	}
	next := base.AddDate(0, 0, durationDays)
	l.expiry[userID] = next
	return next, nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activations
}

type fakeGateway struct {
	mu         sync.Mutex
	createErr  error
	createResp gateway.CreateResponse
	queryErr   error
	queryResp  gateway.QueryResponse
	queryCalls int
	onCreate   func(req gateway.CreateRequest)
}

func (g *fakeGateway) BuildCreate(orderID, requestID, orderInfo string, amount int64) gateway.CreateRequest {
	req := gateway.CreateRequest{
		PartnerCode: "VISTREAM",
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   orderInfo,
		RedirectURL: "https://vistream.example/payments/return",
		IPNURL:      "https://vistream.example/payments/ipn",
		Lang:        "vi",
		RequestType: "captureWallet",
		AutoCapture: true,
	}
	req.Signature = gateway.Sign(testCreateSecret, req.SignatureFields(), gateway.CreateFields)
	return req
}

func (g *fakeGateway) Create(_ context.Context, req gateway.CreateRequest) (*gateway.CreateResponse, error) {
	if g.onCreate != nil {
		g.onCreate(req)
	}
	if g.createErr != nil {
		return nil, g.createErr
	}
	resp := g.createResp
	if resp.PayURL == "" && resp.ResultCode == 0 {
		resp.PayURL = "https://pay.gateway.example/" + req.OrderID
	}
	return &resp, nil
}

func (g *fakeGateway) Query(_ context.Context, orderID, requestID string) (*gateway.QueryResponse, error) {
	g.mu.Lock()
	g.queryCalls++
	g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	resp := g.queryResp
	resp.OrderID = orderID
	resp.RequestID = requestID
	return &resp, nil
}

func (g *fakeGateway) queries() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryCalls
}
