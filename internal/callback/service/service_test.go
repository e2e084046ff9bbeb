package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang/mock/gomock"
	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	callbackdomain "github.com/smallbiznis/payrelay/internal/callback/domain"
	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/dedup"
	directoryservice "github.com/smallbiznis/payrelay/internal/directory/service"
	"github.com/smallbiznis/payrelay/internal/directory/source"
	"github.com/smallbiznis/payrelay/internal/ledger/memory"
	ledgerservice "github.com/smallbiznis/payrelay/internal/ledger/service"
	"github.com/smallbiznis/payrelay/internal/notification"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/providers/sms/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type fakeNotifier struct {
	mu      sync.Mutex
	records []paymentdomain.PaymentRecord
	err     error
	panics  bool
}

func (f *fakeNotifier) Enqueue(_ context.Context, rec paymentdomain.PaymentRecord) (ulid.ULID, error) {
	if f.panics {
		panic("notifier exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return ulid.Make(), f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type harness struct {
	svc      *Service
	store    *memory.Store
	notifier *fakeNotifier
}

type harnessOptions struct {
	notifier Notifier
	claimer  Claimer
}

func newDirectory(log *zap.Logger) *directoryservice.Service {
	holder := config.NewStaticAccountsHolder("test", []config.AccountEntry{
		{AccountNumber: "600000", TeamName: "Alpha", ContactPhones: []string{"0711111111", "0722222222"}},
	})
	return directoryservice.New(directoryservice.Options{
		Local:  source.NewLocal(holder, config.DirectoryConfig{}),
		Config: config.DirectoryConfig{Timeout: time.Second},
		Clock:  clock.SystemClock{},
		Log:    log,
	})
}

func newHarness(t *testing.T, opts ...harnessOptions) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.New()
	writer := ledgerservice.NewWriter(ledgerservice.Params{
		Store: store,
		Cfg:   config.Config{Ledger: config.LedgerConfig{Timeout: time.Second}},
		Clock: clock.SystemClock{},
		Log:   log,
	})
	detector := dedup.New(dedup.Options{Store: store, Timeout: time.Second, Log: log})

	h := &harness{store: store, notifier: &fakeNotifier{}}
	o := Options{
		Detector:  detector,
		Directory: newDirectory(log),
		Ledger:    writer,
		Notifier:  h.notifier,
		Log:       log,
	}
	if len(opts) > 0 {
		if opts[0].notifier != nil {
			o.Notifier = opts[0].notifier
		}
		o.Claimer = opts[0].claimer
	}
	h.svc = New(o)
	return h
}

const scenarioOne = `{"TransID":"X1","TransAmount":"10.00","BillRefNumber":"600000","MSISDN":"254712345678"}`

func TestScenarioAcceptedPaymentIsRecorded(t *testing.T) {
	h := newHarness(t)

	res := h.svc.HandleCallback(context.Background(), []byte(scenarioOne))
	assert.Equal(t, callbackdomain.Result{ResultCode: 0, ResultDesc: "Accepted"}, res)

	rows := h.store.Rows("600000")
	require.Len(t, rows, 2)
	assert.Equal(t, "X1", rows[1][0])
	assert.Equal(t, "10.00", rows[1][2])
	assert.Equal(t, 1, h.notifier.count())
}

func TestScenarioResubmissionIsDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.True(t, h.svc.HandleCallback(ctx, []byte(scenarioOne)).IsAccepted())
	res := h.svc.HandleCallback(ctx, []byte(scenarioOne))

	assert.Equal(t, callbackdomain.Result{ResultCode: 1, ResultDesc: "Rejected: Duplicate transaction"}, res)
	assert.Equal(t, 1, h.store.AppendCount())
	assert.Equal(t, 1, h.notifier.count())
}

func TestScenarioUnknownAccountIsRejected(t *testing.T) {
	h := newHarness(t)

	res := h.svc.HandleCallback(context.Background(),
		[]byte(`{"TransID":"X2","TransAmount":"10.00","BillRefNumber":"999999"}`))

	assert.Equal(t, callbackdomain.Result{ResultCode: 1, ResultDesc: "Rejected: Invalid account"}, res)
	assert.Zero(t, h.store.AppendCount())
	names, err := h.store.Partitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Zero(t, h.notifier.count())
}

func TestScenarioZeroAmountIsRejected(t *testing.T) {
	h := newHarness(t)

	res := h.svc.HandleCallback(context.Background(),
		[]byte(`{"TransID":"X3","TransAmount":"0","BillRefNumber":"600000"}`))

	assert.Equal(t, callbackdomain.Result{
		ResultCode: 1,
		ResultDesc: "Rejected: TransAmount: TransAmount must be a positive number.",
	}, res)
	assert.Zero(t, h.store.AppendCount())
}

func TestInputRejections(t *testing.T) {
	cases := map[string]struct {
		body string
		desc string
	}{
		"malformed json": {`{"TransID":`, "Rejected: Invalid JSON"},
		"json array":     {`[1,2]`, "Rejected: Invalid JSON"},
		"empty object": {`{}`, "Rejected: TransID: This field is required.; " +
			"TransAmount: This field is required.; BillRefNumber: This field is required."},
		"blank reference": {`{"TransID":"X4","TransAmount":"5","BillRefNumber":"  "}`,
			"Rejected: BillRefNumber: This field may not be blank."},
		"negative amount": {`{"TransID":"X5","TransAmount":-5,"BillRefNumber":"600000"}`,
			"Rejected: TransAmount: TransAmount must be a positive number."},
		"non numeric amount": {`{"TransID":"X6","TransAmount":"ten","BillRefNumber":"600000"}`,
			"Rejected: TransAmount: A valid number is required."},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			res := h.svc.HandleCallback(context.Background(), []byte(tc.body))
			assert.Equal(t, callbackdomain.CodeRejected, res.ResultCode)
			assert.Equal(t, tc.desc, res.ResultDesc)
			assert.Zero(t, h.store.AppendCount())
		})
	}
}

func TestSimulationSchemaAccepted(t *testing.T) {
	h := newHarness(t)

	res := h.svc.HandleCallback(context.Background(), []byte(
		`{"TransID":"SIM1","Amount":"250.5","BillRefNumber":"600000","Msisdn":"0712345678","ShortCode":"600000","CommandID":"CustomerPayBillOnline"}`))

	require.True(t, res.IsAccepted(), res.ResultDesc)
	rows := h.store.Rows("600000")
	require.Len(t, rows, 2)
	assert.Equal(t, "250.50", rows[1][2])
	assert.Equal(t, "254712345678", rows[1][4])
}

func TestLedgerFailureStillAccepted(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("AppendRow", errors.New("quota exceeded"))

	res := h.svc.HandleCallback(context.Background(), []byte(scenarioOne))

	assert.True(t, res.IsAccepted())
	assert.Zero(t, h.store.AppendCount())
	assert.Equal(t, 1, h.notifier.count())
}

func TestLedgerUnreachableDuringDedupStillAccepted(t *testing.T) {
	h := newHarness(t)
	h.store.Fail("Partitions", errors.New("sheet api down"))

	res := h.svc.HandleCallback(context.Background(), []byte(scenarioOne))

	assert.True(t, res.IsAccepted())
	assert.Equal(t, 1, h.store.AppendCount())
}

func TestNotifierFaultsStillAccepted(t *testing.T) {
	t.Run("queue full", func(t *testing.T) {
		h := newHarness(t, harnessOptions{notifier: &fakeNotifier{err: notification.ErrQueueFull}})
		assert.True(t, h.svc.HandleCallback(context.Background(), []byte(scenarioOne)).IsAccepted())
	})
	t.Run("panic", func(t *testing.T) {
		h := newHarness(t, harnessOptions{notifier: &fakeNotifier{panics: true}})
		assert.True(t, h.svc.HandleCallback(context.Background(), []byte(scenarioOne)).IsAccepted())
		assert.Equal(t, 1, h.store.AppendCount())
	})
}

func TestEverySmsFailingStillAccepted(t *testing.T) {
	log := zaptest.NewLogger(t)
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockProvider(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()
	sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("gateway down")).Times(2)

	results := make(chan notification.Result, 1)
	dispatcher := notification.NewDispatcher(newDirectory(log), sender, log, nil)
	queue := notification.NewQueue(dispatcher, notification.QueueOptions{
		Workers:   1,
		QueueSize: 4,
		Log:       log,
		OnResult:  func(r notification.Result) { results <- r },
	})
	queue.Start()
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	h := newHarness(t, harnessOptions{notifier: queue})
	assert.True(t, h.svc.HandleCallback(context.Background(), []byte(scenarioOne)).IsAccepted())

	select {
	case r := <-results:
		assert.Error(t, r.Err)
		assert.Equal(t, "X1", r.Job.Record.TransactionID)
	case <-time.After(5 * time.Second):
		t.Fatal("notification never ran")
	}
}

func TestClaimHeldElsewhereIsDuplicate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	claimer := dedup.NewClaimer(client, 30*time.Second)

	h := newHarness(t, harnessOptions{claimer: claimer})
	_, ok, err := claimer.TryClaim(context.Background(), "X1")
	require.NoError(t, err)
	require.True(t, ok)

	res := h.svc.HandleCallback(context.Background(), []byte(scenarioOne))
	assert.Equal(t, "Rejected: Duplicate transaction", res.ResultDesc)
	assert.Zero(t, h.store.AppendCount())
}

func TestClaimReleasedAfterCallback(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	h := newHarness(t, harnessOptions{claimer: dedup.NewClaimer(client, 30*time.Second)})
	require.True(t, h.svc.HandleCallback(context.Background(), []byte(scenarioOne)).IsAccepted())
	assert.False(t, mr.Exists("payrelay:dedup:claim:X1"))

	// Redis outage proceeds unclaimed and the ledger still catches the retry.
	mr.Close()
	res := h.svc.HandleCallback(context.Background(), []byte(scenarioOne))
	assert.Equal(t, "Rejected: Duplicate transaction", res.ResultDesc)
}

func TestValidate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := map[string]struct {
		body string
		want callbackdomain.Result
	}{
		"known account":   {`{"BillRefNumber":"600000"}`, callbackdomain.Accepted()},
		"unknown account": {`{"BillRefNumber":"999999"}`, callbackdomain.Rejected("Invalid account")},
		"invalid json":    {`not json`, callbackdomain.Rejected("Invalid JSON")},
		"missing ref":     {`{"TransID":"X1"}`, callbackdomain.Rejected("BillRefNumber: This field is required.")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.svc.Validate(ctx, []byte(tc.body)))
		})
	}
	assert.Zero(t, h.store.AppendCount())
}

func TestForceWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	rec := paymentdomain.PaymentRecord{
		TransactionID: "DBG1",
		Timestamp:     "20241015143000",
		Amount:        decimal.RequireFromString("99.9"),
		PayerName:     "Test User",
		PayerPhone:    "0712345678",
		AccountNumber: "ANY-ACCOUNT",
	}

	ok, echoed := h.svc.ForceWrite(ctx, rec)
	assert.True(t, ok)
	assert.Equal(t, rec, echoed)
	assert.Len(t, h.store.Rows("ANY-ACCOUNT"), 2)

	h.store.Fail("AppendRow", errors.New("down"))
	ok, _ = h.svc.ForceWrite(ctx, rec)
	assert.False(t, ok)
}
