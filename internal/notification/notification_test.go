package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	directorydomain "github.com/smallbiznis/payrelay/internal/directory/domain"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/providers/sms"
	"github.com/smallbiznis/payrelay/internal/providers/sms/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubDirectory map[string]directorydomain.Account

func (s stubDirectory) ListAccounts(context.Context) []directorydomain.Account {
	out := make([]directorydomain.Account, 0, len(s))
	for _, a := range s {
		out = append(out, a)
	}
	return out
}

func (s stubDirectory) IsValid(_ context.Context, accountNumber string) bool {
	_, ok := s[accountNumber]
	return ok
}

func (s stubDirectory) Resolve(_ context.Context, accountNumber string) (directorydomain.Account, bool) {
	a, ok := s[accountNumber]
	return a, ok
}

func payment(transID, account string) paymentdomain.PaymentRecord {
	return paymentdomain.PaymentRecord{
		TransactionID: transID,
		Timestamp:     "20241015143000",
		Amount:        decimal.RequireFromString("1234.5"),
		PayerName:     "jane  wanjiru",
		PayerPhone:    "0712345678",
		AccountNumber: account,
	}
}

var directory = stubDirectory{
	"600000":  {AccountNumber: "600000", TeamName: "Alpha", ContactPhones: []string{"0711111111", "0722222222"}},
	"TEST001": {AccountNumber: "TEST001", TeamName: "Quiet"},
}

func TestBuildMessage(t *testing.T) {
	want := "Payment Received\n" +
		"Txn: QJK1\n" +
		"Date: 15 Oct 2024, 02:30 PM\n" +
		"Amount: KES 1,234.50\n" +
		"From: Jane Wanjiru (254712345678)\n" +
		"Account: 600000"
	assert.Equal(t, want, BuildMessage(payment("QJK1", "600000")))
}

func TestNotifySendsToEveryContact(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockProvider(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()
	msg := BuildMessage(payment("QJK1", "600000"))
	gomock.InOrder(
		sender.EXPECT().Send(gomock.Any(), "0711111111", msg).Return(nil),
		sender.EXPECT().Send(gomock.Any(), "0722222222", msg).Return(nil),
	)

	d := NewDispatcher(directory, sender, zaptest.NewLogger(t), nil)
	assert.True(t, d.Notify(context.Background(), payment("QJK1", "600000")))
}

func TestNotifyPartialFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockProvider(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()
	sender.EXPECT().Send(gomock.Any(), "0711111111", gomock.Any()).Return(errors.New("gateway down"))
	// The second contact is still attempted.
	sender.EXPECT().Send(gomock.Any(), "0722222222", gomock.Any()).Return(nil)

	d := NewDispatcher(directory, sender, zaptest.NewLogger(t), nil)
	assert.False(t, d.Notify(context.Background(), payment("QJK1", "600000")))
}

func TestNotifyUnknownAccountSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockProvider(ctrl)

	d := NewDispatcher(directory, sender, zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, d.Deliver(context.Background(), payment("QJK1", "999999")), ErrUnknownAccount)
	assert.ErrorIs(t, d.Deliver(context.Background(), payment("QJK1", "TEST001")), ErrNoContacts)
}

type recordingDeliverer struct {
	mu    sync.Mutex
	seen  []string
	block chan struct{}
	err   error
	panic bool
}

func (r *recordingDeliverer) Deliver(ctx context.Context, rec paymentdomain.PaymentRecord) error {
	if r.block != nil {
		<-r.block
	}
	if r.panic {
		panic("boom")
	}
	r.mu.Lock()
	r.seen = append(r.seen, rec.TransactionID)
	r.mu.Unlock()
	return r.err
}

func collectResults(n int) (func(Result), <-chan []Result) {
	var mu sync.Mutex
	var results []Result
	done := make(chan []Result, 1)
	return func(res Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if len(results) == n {
			done <- append([]Result(nil), results...)
		}
	}, done
}

func waitResults(t *testing.T, ch <-chan []Result) []Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification results")
		return nil
	}
}

func TestQueueRunsJobs(t *testing.T) {
	deliverer := &recordingDeliverer{}
	onResult, done := collectResults(3)
	q := NewQueue(deliverer, QueueOptions{Workers: 2, QueueSize: 8, Log: zaptest.NewLogger(t), OnResult: onResult})
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	ids := map[string]bool{}
	for _, id := range []string{"A", "B", "C"} {
		jobID, err := q.Enqueue(context.Background(), payment(id, "600000"))
		require.NoError(t, err)
		ids[jobID.String()] = true
	}
	assert.Len(t, ids, 3)

	results := waitResults(t, done)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.True(t, ids[res.Job.ID.String()])
	}
	assert.ElementsMatch(t, []string{"A", "B", "C"}, deliverer.seen)
}

func TestQueueDropsWhenFull(t *testing.T) {
	deliverer := &recordingDeliverer{block: make(chan struct{})}
	q := NewQueue(deliverer, QueueOptions{Workers: 1, QueueSize: 1, Log: zaptest.NewLogger(t)})

	// Not started: the single slot fills and the next job is dropped.
	_, err := q.Enqueue(context.Background(), payment("A", "600000"))
	require.NoError(t, err)
	_, err = q.Enqueue(context.Background(), payment("B", "600000"))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Depth())

	close(deliverer.block)
	q.Start()
	require.NoError(t, q.Stop(context.Background()))
	assert.Equal(t, []string{"A"}, deliverer.seen)
}

func TestQueueRecoversPanics(t *testing.T) {
	onResult, done := collectResults(1)
	q := NewQueue(&recordingDeliverer{panic: true}, QueueOptions{Workers: 1, QueueSize: 1, Log: zaptest.NewLogger(t), OnResult: onResult})
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	_, err := q.Enqueue(context.Background(), payment("A", "600000"))
	require.NoError(t, err)

	results := waitResults(t, done)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "panic")
}

func TestQueueReportsDeliveryErrors(t *testing.T) {
	onResult, done := collectResults(1)
	q := NewQueue(&recordingDeliverer{err: &sms.RejectedError{StatusCode: 200, ResponseCode: 1004}},
		QueueOptions{Workers: 1, QueueSize: 1, Log: zaptest.NewLogger(t), OnResult: onResult})
	q.Start()
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	_, err := q.Enqueue(context.Background(), payment("A", "600000"))
	require.NoError(t, err)

	results := waitResults(t, done)
	var rejected *sms.RejectedError
	assert.True(t, errors.As(results[0].Err, &rejected))
}

func TestQueueClosedAfterStop(t *testing.T) {
	q := NewQueue(&recordingDeliverer{}, QueueOptions{Workers: 1, QueueSize: 1})
	q.Start()
	require.NoError(t, q.Stop(context.Background()))
	require.NoError(t, q.Stop(context.Background()))

	_, err := q.Enqueue(context.Background(), payment("A", "600000"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueStopHonoursContext(t *testing.T) {
	deliverer := &recordingDeliverer{block: make(chan struct{})}
	q := NewQueue(deliverer, QueueOptions{Workers: 1, QueueSize: 2})
	q.Start()
	_, err := q.Enqueue(context.Background(), payment("A", "600000"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Stop(ctx), context.DeadlineExceeded)
	close(deliverer.block)
}
