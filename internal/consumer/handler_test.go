package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metric-oracle/internal/oracle"
	"metric-oracle/internal/storage"
)

const admin = "admin"

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type failingPoster struct{ err error }

func (f failingPoster) PostMetric(ctx context.Context, sender string, metric oracle.Metric) (oracle.PostResult, error) {
	return oracle.PostResult{}, f.err
}

func newOracle(t *testing.T) *oracle.Oracle {
	t.Helper()
	o, err := oracle.Open(context.Background(), storage.NewMemory(), oracle.Options{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, o.Instantiate(context.Background(), admin))
	return o
}

func envelope(t *testing.T, sender, value string, ts uint64) []byte {
	t.Helper()
	attrs := `{"denom":"stuatom","base_denom":"ibc/ATOM"}`
	raw, err := json.Marshal(Envelope{
		Sender: sender,
		Metric: oracle.Metric{
			Key:      "stuatom_redemption_rate",
			Value:    value,
			Category: oracle.CategoryRedemptionRate,
			Metadata: oracle.Metadata{UpdateTime: ts, BlockHeight: ts, Attributes: &attrs},
		},
	})
	require.NoError(t, err)
	return raw
}

func runClaim(t *testing.T, h Handler, values ...[]byte) (*fakeSession, error) {
	t.Helper()
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, len(values))}
	for i, v := range values {
		claim.messages <- &sarama.ConsumerMessage{Topic: "oracle-metrics", Offset: int64(i), Value: v}
	}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	return session, h.ConsumeClaim(session, claim)
}

func TestConsumeClaimAppliesMetrics(t *testing.T) {
	o := newOracle(t)
	h := NewHandler("oracle-metrics", o, zerolog.Nop())

	session, err := runClaim(t, h,
		envelope(t, admin, "1.10", 10),
		envelope(t, admin, "1.20", 20),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, session.marked)

	latest, err := o.LatestMetric(context.Background(), "stuatom_redemption_rate")
	require.NoError(t, err)
	assert.Equal(t, "1.20", latest.Value)

	price, err := o.Price(context.Background(), "stuatom", "ibc/ATOM", "")
	require.NoError(t, err)
	assert.Equal(t, uint64(20), price.LastUpdated)
}

func TestConsumeClaimSkipsPoisonMessages(t *testing.T) {
	o := newOracle(t)
	h := NewHandler("oracle-metrics", o, zerolog.Nop())

	session, err := runClaim(t, h,
		[]byte("{not json"),
		envelope(t, "mallory", "1.10", 10),
		envelope(t, admin, "oops", 11),
		envelope(t, admin, "1.30", 12),
	)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3}, session.marked)

	history, err := o.HistoricalMetrics(context.Background(), "stuatom_redemption_rate")
	require.NoError(t, err)
	require.Len(t, history.Metrics, 1)
	assert.Equal(t, "1.30", history.Metrics[0].Value)
}

func TestConsumeClaimStopsOnStorageFailure(t *testing.T) {
	h := NewHandler("oracle-metrics", failingPoster{err: errors.New("disk full")}, zerolog.Nop())

	session, err := runClaim(t, h, envelope(t, admin, "1.10", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, session.marked)
}

func TestConsumeClaimReturnsOnCancel(t *testing.T) {
	h := NewHandler("oracle-metrics", newOracle(t), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}
	assert.NoError(t, h.ConsumeClaim(session, claim))
}

func TestPublisherSendsKeyedEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Sender != admin || env.Metric.Value != "1.10" {
			return errors.New("unexpected envelope")
		}
		return nil
	})

	pub := NewPublisherFromProducer(producer, "oracle-metrics")
	var env Envelope
	require.NoError(t, json.Unmarshal(envelope(t, admin, "1.10", 10), &env))

	_, _, err := pub.Publish(context.Background(), env)
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}
