package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/domain/repository"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/metrics"
)

// One metrics instance for the whole test binary; promauto registers
// collectors globally.
var testMetrics = metrics.NewMetrics("usecase_test")

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
func (l nopLogger) With(...interface{}) logger.Logger {
	return l
}

// memStore is an in-memory StatusRecordRepository mirroring the
// conditional-update semantics of the Mongo implementation
type memStore struct {
	mu      sync.Mutex
	records map[string]*entity.StatusRecord
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*entity.StatusRecord)}
}

func storeKey(workflow, key string) string {
	return workflow + "/" + key
}

func (s *memStore) put(rec *entity.StatusRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[storeKey(rec.Workflow, rec.RecordKey)] = &cp
}

func (s *memStore) get(workflow, key string) *entity.StatusRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[storeKey(workflow, key)]; ok {
		cp := *rec
		return &cp
	}
	return nil
}

func (s *memStore) UpsertEntity(ctx context.Context, wf entity.Workflow, key, orderNo string, typ entity.EntityType, readiness entity.Readiness, snap entity.Snapshot, create bool, updatedBy string) (*entity.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey(wf.Name, key)]
	if !ok {
		if !create {
			return nil, nil
		}
		rec = &entity.StatusRecord{
			RecordKey:       key,
			OrderNo:         orderNo,
			Workflow:        wf.Name,
			AggregateStatus: entity.StatusPending,
			EntityStatuses:  make(map[entity.EntityType]entity.Readiness),
			LastUpdatedBy:   updatedBy,
		}
		for _, tracked := range wf.Tracked {
			rec.EntityStatuses[tracked] = entity.ReadinessPending
		}
		s.records[storeKey(wf.Name, key)] = rec
	}
	if rec.AggregateStatus.Terminal() {
		cp := *rec
		return &cp, nil
	}
	rec.EntityStatuses[typ] = readiness
	mergeSnapshot(&rec.Snapshot, snap)
	rec.LastUpdatedBy = updatedBy
	cp := *rec
	cp.EntityStatuses = make(map[entity.EntityType]entity.Readiness, len(rec.EntityStatuses))
	for k, v := range rec.EntityStatuses {
		cp.EntityStatuses[k] = v
	}
	return &cp, nil
}

func (s *memStore) Get(ctx context.Context, workflow, key string) (*entity.StatusRecord, error) {
	return s.get(workflow, key), nil
}

func (s *memStore) EachByAggregateStatus(ctx context.Context, status entity.AggregateStatus, pageSize int, fn func(*entity.StatusRecord) error) error {
	s.mu.Lock()
	var matched []*entity.StatusRecord
	for _, rec := range s.records {
		if rec.AggregateStatus == status {
			cp := *rec
			matched = append(matched, &cp)
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool {
		return storeKey(matched[i].Workflow, matched[i].RecordKey) < storeKey(matched[j].Workflow, matched[j].RecordKey)
	})
	for _, rec := range matched {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) TransitionAggregate(ctx context.Context, workflow, key string, status entity.AggregateStatus, message string, retryDelta int, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey(workflow, key)]
	if !ok || rec.AggregateStatus.Terminal() {
		return nil
	}
	rec.AggregateStatus = status
	if message != "" {
		rec.Message = message
	}
	rec.RetryCount += retryDelta
	rec.LastUpdatedBy = updatedBy
	return nil
}

func (s *memStore) StageDispatch(ctx context.Context, workflow, key string, customerIDs []string, payloadJSON string, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[storeKey(workflow, key)]
	if !ok {
		return nil
	}
	rec.CustomerIDs = customerIDs
	if payloadJSON != "" {
		rec.Payload = payloadJSON
	}
	return nil
}

func (s *memStore) Delete(ctx context.Context, workflow, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, storeKey(workflow, key))
	s.deleted = append(s.deleted, storeKey(workflow, key))
	return nil
}

func (s *memStore) ResetForRetrigger(ctx context.Context, workflow, orderNo string, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.Workflow == workflow && rec.OrderNo == orderNo {
			rec.AggregateStatus = entity.StatusPending
			rec.RetryCount = 0
			rec.Message = ""
		}
	}
	return nil
}

func mergeSnapshot(dst *entity.Snapshot, src entity.Snapshot) {
	apply := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	apply(&dst.UUID, src.UUID)
	apply(&dst.Housebill, src.Housebill)
	apply(&dst.BillNo, src.BillNo)
	apply(&dst.ScheduledDateTime, src.ScheduledDateTime)
	apply(&dst.ETADateTime, src.ETADateTime)
	apply(&dst.ShipName, src.ShipName)
	apply(&dst.ShipCity, src.ShipCity)
	apply(&dst.ShipState, src.ShipState)
	apply(&dst.ShipZip, src.ShipZip)
	apply(&dst.ShipCountry, src.ShipCountry)
	apply(&dst.ConCity, src.ConCity)
	apply(&dst.ConState, src.ConState)
	apply(&dst.ConZip, src.ConZip)
	apply(&dst.ConCountry, src.ConCountry)
	apply(&dst.StatusCode, src.StatusCode)
	apply(&dst.EventDateTime, src.EventDateTime)
}

// memShipments is an in-memory ShipmentRepository
type memShipments struct {
	headers       map[string]*entity.ShipmentHeader
	shippers      map[string][]entity.Shipper
	consignees    map[string][]entity.Consignee
	milestones    map[string]*entity.Milestone
	processStates map[string]string
}

func newMemShipments() *memShipments {
	return &memShipments{
		headers:       make(map[string]*entity.ShipmentHeader),
		shippers:      make(map[string][]entity.Shipper),
		consignees:    make(map[string][]entity.Consignee),
		milestones:    make(map[string]*entity.Milestone),
		processStates: make(map[string]string),
	}
}

func (m *memShipments) GetHeader(ctx context.Context, orderNo string) (*entity.ShipmentHeader, error) {
	return m.headers[orderNo], nil
}

func (m *memShipments) ListShippers(ctx context.Context, orderNo string) ([]entity.Shipper, error) {
	return m.shippers[orderNo], nil
}

func (m *memShipments) ListConsignees(ctx context.Context, orderNo string) ([]entity.Consignee, error) {
	return m.consignees[orderNo], nil
}

func (m *memShipments) GetMilestone(ctx context.Context, orderNo, statusID string) (*entity.Milestone, error) {
	return m.milestones[orderNo+"/"+statusID], nil
}

func (m *memShipments) SetMilestoneProcessState(ctx context.Context, orderNo, statusID, state string) error {
	m.processStates[orderNo+"/"+statusID] = state
	return nil
}

// memEntitlements is an in-memory EntitlementRepository
type memEntitlements struct {
	allowed     []string
	byHousebill map[string][]string
}

func newMemEntitlements() *memEntitlements {
	return &memEntitlements{byHousebill: make(map[string][]string)}
}

func (m *memEntitlements) AllowedCustomerIDs(ctx context.Context) ([]string, error) {
	return m.allowed, nil
}

func (m *memEntitlements) CustomersForHousebill(ctx context.Context, housebill string, allowed []string) ([]string, error) {
	ids := m.byHousebill[housebill]
	if len(allowed) == 0 {
		return ids, nil
	}
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	var out []string
	for _, id := range ids {
		if set[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type publishedEvent struct {
	CustomerID string
	Payload    entity.Payload
}

// memPublisher records publications and alerts; failFor simulates a
// broker rejecting one routing key
type memPublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	alerts    []string
	failFor   map[string]bool
}

func newMemPublisher() *memPublisher {
	return &memPublisher{failFor: make(map[string]bool)}
}

func (p *memPublisher) Publish(ctx context.Context, payload *entity.Payload, customerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[customerID] {
		return fmt.Errorf("broker unavailable for %s", customerID)
	}
	p.published = append(p.published, publishedEvent{CustomerID: customerID, Payload: *payload})
	return nil
}

func (p *memPublisher) Alert(ctx context.Context, component, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, component+": "+message)
}

// memDocuments is a canned DocumentRepository
type memDocuments struct {
	url string
	err error
}

func (m *memDocuments) FetchDocument(ctx context.Context, housebill, docType string) (*repository.Document, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &repository.Document{Filename: housebill + ".pdf", Body: []byte("pdf")}, nil
}

func (m *memDocuments) StoreAndSign(ctx context.Context, doc *repository.Document) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.url, nil
}

// testEngine bundles a fully wired engine over in-memory fakes
type testEngine struct {
	store        *memStore
	shipments    *memShipments
	entitlements *memEntitlements
	publisher    *memPublisher
	documents    *memDocuments
	normalizer   *Normalizer
	engine       *Reconciler
	sweeper      *Sweeper
}

func newTestEngine() *testEngine {
	store := newMemStore()
	shipments := newMemShipments()
	entitlements := newMemEntitlements()
	publisher := newMemPublisher()
	documents := &memDocuments{url: "https://blob.example.com/doc.pdf"}
	log := nopLogger{}

	builder := NewPayloadBuilder(shipments, documents, "HCPOD", log)
	dispatcher := NewDispatcher(publisher, testMetrics, log)
	engine := NewReconciler(store, shipments, entitlements, builder, dispatcher,
		publisher, testMetrics, log, "dev", "test")
	sweeper := NewSweeper(store, shipments, engine, publisher, testMetrics, log,
		entity.Workflows(), 5, 100, "test")

	return &testEngine{
		store:        store,
		shipments:    shipments,
		entitlements: entitlements,
		publisher:    publisher,
		documents:    documents,
		normalizer:   NewNormalizer(shipments, log),
		engine:       engine,
		sweeper:      sweeper,
	}
}
