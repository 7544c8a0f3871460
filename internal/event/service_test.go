package event

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"newsbee/internal/history"
)

// -------------------------
// Mocks
// -------------------------

type MockAMQPChannel struct {
	mock.Mock
}

func (m *MockAMQPChannel) PublishWithContext(
	ctx context.Context,
	exchange, key string,
	mandatory, immediate bool,
	msg amqp.Publishing,
) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *MockAMQPChannel) Close() error { return nil }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishFetchRecorded(ctx context.Context, r *history.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// fakeStream replays a fixed list of change events.
type fakeStream struct {
	events []changeEvent
	pos    int
	err    error
	closed bool
}

func (f *fakeStream) Next(context.Context) bool {
	if f.pos >= len(f.events) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeStream) Decode(val interface{}) error {
	ev, ok := val.(*changeEvent)
	if !ok {
		return errors.New("unexpected decode target")
	}
	*ev = f.events[f.pos-1]
	return nil
}

func (f *fakeStream) Err() error                  { return f.err }
func (f *fakeStream) Close(context.Context) error { f.closed = true; return nil }

// -------------------------
// Helpers
// -------------------------

func newTestPublisher(mockCh *MockAMQPChannel) *RabbitPublisher {
	return &RabbitPublisher{
		conn:       nil,
		ch:         mockCh,
		exchange:   "newsbee.fetches",
		routingKey: "fetch.recorded",
		logger:     log.New(io.Discard, "", 0),
	}
}

func newTestService(stream changeStream, pub Publisher, buf *bytes.Buffer) *Service {
	return &Service{
		watch:     func(context.Context) (changeStream, error) { return stream, nil },
		publisher: pub,
		logger:    log.New(buf, "", 0),
	}
}

// -------------------------
// Publisher
// -------------------------

func TestPublishFetchRecorded_PublishesCorrectly(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	mockCh.
		On("PublishWithContext",
			mock.Anything,
			"newsbee.fetches",
			"fetch.recorded",
			false,
			false,
			mock.AnythingOfType("amqp091.Publishing"),
		).
		Return(nil).
		Once()

	err := pub.PublishFetchRecorded(context.Background(), &history.Record{ID: "f-1", Kind: "country", Value: "us"})
	require.NoError(t, err)

	mockCh.AssertExpectations(t)
}

func TestPublishFetchRecorded_JSONContainsRecord(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	var capturedMsg amqp.Publishing

	mockCh.
		On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			capturedMsg = args.Get(5).(amqp.Publishing)
		})

	rec := &history.Record{ID: "f-42", Kind: "topic", Value: "election", Page: 2, Total: 7, At: time.Unix(1700000000, 0).UTC()}
	err := pub.PublishFetchRecorded(context.Background(), rec)
	require.NoError(t, err)

	body := string(capturedMsg.Body)
	assert.Equal(t, "f-42", capturedMsg.MessageId)
	assert.Equal(t, amqp.Persistent, capturedMsg.DeliveryMode)
	assert.Contains(t, body, `"event":"fetch.recorded"`)
	assert.Contains(t, body, `"fetchId":"f-42"`)
	assert.Contains(t, body, `"value":"election"`)
}

func TestPublishFetchRecorded_HeadersAndSchema(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	var capturedMsg amqp.Publishing
	mockCh.
		On("PublishWithContext", mock.Anything, "newsbee.fetches", "fetch.recorded", false, false, mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			capturedMsg = args.Get(5).(amqp.Publishing)
		}).
		Once()

	err := pub.PublishFetchRecorded(context.Background(), &history.Record{ID: "f-7", Kind: "country", Value: "gb"})
	require.NoError(t, err)

	assert.Equal(t, int32(SchemaVersion), capturedMsg.Headers["schema-version"])
	assert.Equal(t, "country", capturedMsg.Headers["fetch-kind"])
	assert.Equal(t, "gb", capturedMsg.Headers["fetch-value"])
	assert.Equal(t, "newsbee", capturedMsg.AppId)
	assert.False(t, capturedMsg.Timestamp.IsZero())
	assert.Contains(t, string(capturedMsg.Body), `"schemaVersion":1`)
	mockCh.AssertExpectations(t)
}

func TestPublishFetchRecorded_FailedFetchUsesFailedKey(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	mockCh.
		On("PublishWithContext", mock.Anything, "newsbee.fetches", "fetch.recorded.failed", false, false, mock.Anything).
		Return(nil).
		Once()

	err := pub.PublishFetchRecorded(context.Background(), &history.Record{ID: "f-8", Error: "HTTP 500"})
	require.NoError(t, err)
	mockCh.AssertExpectations(t)
}

func TestPublishFetchRecorded_ErrorBubbles(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	publishErr := errors.New("boom")
	mockCh.
		On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(publishErr)

	err := pub.PublishFetchRecorded(context.Background(), &history.Record{})
	require.Error(t, err)
	require.Equal(t, publishErr, err)
}

func TestPublishFetchRecorded_ContextCancel(t *testing.T) {
	mockCh := &MockAMQPChannel{}
	pub := newTestPublisher(mockCh)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pub.PublishFetchRecorded(ctx, &history.Record{})
	require.Error(t, err)
	require.Equal(t, context.Canceled, err)
	mockCh.AssertNotCalled(t, "PublishWithContext")
}

// -------------------------
// Relay loop
// -------------------------

func TestRun_RelaysInsertsAndSkipsBadEvents(t *testing.T) {
	stream := &fakeStream{events: []changeEvent{
		{OperationType: "insert", FullDocument: history.Record{ID: "a"}},
		{OperationType: "insert"},
		{OperationType: "insert", FullDocument: history.Record{ID: "b"}},
	}}
	pub := &mockPublisher{}
	buf := &bytes.Buffer{}

	pub.On("PublishFetchRecorded", mock.Anything, mock.MatchedBy(func(r *history.Record) bool { return r.ID == "a" })).Return(nil).Once()
	pub.On("PublishFetchRecorded", mock.Anything, mock.MatchedBy(func(r *history.Record) bool { return r.ID == "b" })).Return(errors.New("channel closed")).Once()

	newTestService(stream, pub, buf).Run(context.Background())

	pub.AssertExpectations(t)
	assert.True(t, stream.closed)
	assert.Contains(t, buf.String(), "published fetch a")
	assert.Contains(t, buf.String(), "missing fetchId")
	assert.Contains(t, buf.String(), "failed publishing fetch b: channel closed")
	assert.Contains(t, buf.String(), "change stream stopped")
}

func TestRun_WatchError(t *testing.T) {
	buf := &bytes.Buffer{}
	s := &Service{
		watch:     func(context.Context) (changeStream, error) { return nil, errors.New("not a replica set") },
		publisher: &mockPublisher{},
		logger:    log.New(buf, "", 0),
	}

	s.Run(context.Background())

	assert.Contains(t, buf.String(), "failed to open change stream: not a replica set")
}
