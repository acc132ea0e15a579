package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dining-concierge/internal/model"
	"dining-concierge/internal/queue"
	"dining-concierge/internal/records"
)

type fakeQueue struct {
	msgs         []*queue.Message
	recvErr      error
	ackErr       error
	acked        int
	deadLettered []string
}

func (q *fakeQueue) Receive(ctx context.Context, wait time.Duration) (*queue.Message, error) {
	if q.recvErr != nil {
		return nil, q.recvErr
	}
	if len(q.msgs) == 0 {
		return nil, nil
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, nil
}

func (q *fakeQueue) Ack(ctx context.Context, msg *queue.Message) error {
	if q.ackErr != nil {
		return q.ackErr
	}
	q.acked++
	return nil
}

func (q *fakeQueue) DeadLetter(ctx context.Context, msg *queue.Message, reason string) error {
	q.deadLettered = append(q.deadLettered, reason)
	return nil
}

type fakeIndex struct {
	candidates []model.Candidate
	err        error
	calls      int
}

func (i *fakeIndex) QueryByCuisine(ctx context.Context, cuisine string, limit int) ([]model.Candidate, error) {
	i.calls++
	if i.err != nil {
		return nil, i.err
	}
	if len(i.candidates) > limit {
		return i.candidates[:limit], nil
	}
	return i.candidates, nil
}

type fakeStore struct {
	records map[string]*model.Record
	err     error
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*model.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return rec, nil
}

type fakeNotifier struct {
	sent []model.Notification
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, msg model.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func testConfig() Config {
	return Config{
		WaitWindow:  10 * time.Millisecond,
		ResultCap:   50,
		SampleSize:  5,
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}
}

func newTestPipeline(q *fakeQueue, idx *fakeIndex, st *fakeStore, n *fakeNotifier) *Pipeline {
	return New(q, idx, st, n, rand.New(rand.NewSource(1)), zerolog.Nop(), testConfig())
}

func candidateSet(n int, cuisine string) ([]model.Candidate, map[string]*model.Record) {
	cands := make([]model.Candidate, 0, n)
	recs := make(map[string]*model.Record, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("biz-%d", i)
		cands = append(cands, model.Candidate{BusinessID: id, Cuisine: cuisine})
		recs[id] = &model.Record{
			BusinessID: id,
			Name:       fmt.Sprintf("Restaurant %d", i),
			Address:    fmt.Sprintf("%d Main St", i),
			Cuisine:    cuisine,
		}
	}
	return cands, recs
}

var entryLine = regexp.MustCompile(`(?m)^(\d+)\. (.+), located at (.+)$`)

func requestMsg(t *testing.T) *queue.Message {
	t.Helper()
	return &queue.Message{Body: []byte(
		`{"Cuisine":"italian","Email":"a@b.com","NumberOfPeople":"4","DiningTime":"7pm","Location":"Manhattan"}`)}
}

func TestProcessOneEmptyQueue(t *testing.T) {
	q := &fakeQueue{}
	p := newTestPipeline(q, &fakeIndex{}, &fakeStore{}, &fakeNotifier{})

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Outcome != OutcomeEmpty {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeEmpty)
	}
	if q.acked != 0 {
		t.Errorf("acked %d messages on empty queue", q.acked)
	}
}

func TestProcessOneEndToEnd(t *testing.T) {
	cands, recs := candidateSet(8, "italian")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Outcome != OutcomeSent {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeSent)
	}
	if res.Recommended != 5 {
		t.Errorf("recommended = %d, want 5", res.Recommended)
	}
	if q.acked != 1 {
		t.Errorf("acked = %d, want 1", q.acked)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(n.sent))
	}

	msg := n.sent[0]
	if msg.To != "a@b.com" {
		t.Errorf("To = %q, want a@b.com", msg.To)
	}
	if !strings.Contains(msg.Subject, "italian") {
		t.Errorf("subject %q does not mention cuisine", msg.Subject)
	}

	entries := entryLine.FindAllStringSubmatch(msg.Body, -1)
	if len(entries) != 5 {
		t.Fatalf("body lists %d entries, want 5:\n%s", len(entries), msg.Body)
	}
	seen := map[string]bool{}
	for i, e := range entries {
		if want := fmt.Sprintf("%d", i+1); e[1] != want {
			t.Errorf("entry %d numbered %s, want %s", i, e[1], want)
		}
		if seen[e[2]] {
			t.Errorf("duplicate entry %q", e[2])
		}
		seen[e[2]] = true
	}
	for _, field := range []string{"Manhattan", "4", "7pm"} {
		if !strings.Contains(msg.Body, field) {
			t.Errorf("body missing display field %q", field)
		}
	}
}

func TestProcessOneFewerCandidatesThanSample(t *testing.T) {
	cands, recs := candidateSet(3, "italian")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Recommended != 3 {
		t.Errorf("recommended = %d, want 3", res.Recommended)
	}
	if got := len(entryLine.FindAllString(n.sent[0].Body, -1)); got != 3 {
		t.Errorf("body lists %d entries, want 3", got)
	}
}

func TestProcessOneNoResults(t *testing.T) {
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{}, &fakeStore{}, n)

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Outcome != OutcomeNoResults {
		t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeNoResults)
	}
	// Policy: apology sent, message acked.
	if q.acked != 1 {
		t.Errorf("acked = %d, want 1", q.acked)
	}
	if len(n.sent) != 1 || !strings.Contains(n.sent[0].Body, "couldn't find") {
		t.Errorf("expected an apology notification, got %+v", n.sent)
	}
}

func TestProcessOneDeadLettersMalformedMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{not json`},
		{"missing cuisine", `{"Email":"a@b.com"}`},
		{"missing email", `{"Cuisine":"italian"}`},
		{"bad email", `{"Cuisine":"italian","Email":"not-an-email"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueue{msgs: []*queue.Message{{Body: []byte(tt.body)}}}
			n := &fakeNotifier{}
			p := newTestPipeline(q, &fakeIndex{}, &fakeStore{}, n)

			res, err := p.ProcessOne(context.Background())
			if err != nil {
				t.Fatalf("ProcessOne: %v", err)
			}
			if res.Outcome != OutcomeDeadLettered {
				t.Fatalf("outcome = %s, want %s", res.Outcome, OutcomeDeadLettered)
			}
			if len(q.deadLettered) != 1 {
				t.Fatalf("dead-lettered %d messages, want 1", len(q.deadLettered))
			}
			if len(n.sent) != 0 {
				t.Errorf("sent a notification for a malformed request")
			}
		})
	}
}

func TestProcessOneSearchFailureLeavesMessage(t *testing.T) {
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	idx := &fakeIndex{err: errors.New("malformed response body")}
	n := &fakeNotifier{}
	p := newTestPipeline(q, idx, &fakeStore{}, n)

	_, err := p.ProcessOne(context.Background())
	var terr *TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TransientError", err)
	}
	if idx.calls != 3 {
		t.Errorf("index queried %d times, want 3 attempts", idx.calls)
	}
	if q.acked != 0 {
		t.Errorf("message was acked despite search failure")
	}
	if len(n.sent) != 0 {
		t.Errorf("notification sent despite search failure")
	}
}

func TestProcessOneMissingRecordUsesPlaceholder(t *testing.T) {
	cands, recs := candidateSet(5, "italian")
	delete(recs, "biz-2")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Recommended != 5 {
		t.Errorf("recommended = %d, want 5", res.Recommended)
	}
	if !strings.Contains(n.sent[0].Body, "Unknown Restaurant") {
		t.Errorf("body missing placeholder entry:\n%s", n.sent[0].Body)
	}
	if got := len(entryLine.FindAllString(n.sent[0].Body, -1)); got != 5 {
		t.Errorf("body lists %d entries, want one per sampled candidate", got)
	}
}

func TestProcessOneStoreTransportFailure(t *testing.T) {
	cands, _ := candidateSet(5, "italian")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	st := &fakeStore{err: errors.New("connection refused")}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, st, &fakeNotifier{})

	_, err := p.ProcessOne(context.Background())
	var terr *TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TransientError", err)
	}
	if q.acked != 0 {
		t.Errorf("message was acked despite store failure")
	}
}

func TestProcessOneSendFailureLeavesMessage(t *testing.T) {
	cands, recs := candidateSet(5, "italian")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{err: errors.New("smtp unreachable")}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	_, err := p.ProcessOne(context.Background())
	var terr *TransientError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TransientError", err)
	}
	if q.acked != 0 {
		t.Errorf("message was acked despite send failure")
	}
}

func TestProcessOneAckFailureAfterSend(t *testing.T) {
	cands, recs := candidateSet(5, "italian")
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}, ackErr: errors.New("commit failed")}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	res, err := p.ProcessOne(context.Background())
	if err == nil {
		t.Fatal("expected an error on ack failure")
	}
	// The notification went out; the caller learns the ack did not stick.
	if res.Outcome != OutcomeSent {
		t.Errorf("outcome = %s, want %s", res.Outcome, OutcomeSent)
	}
	if len(n.sent) != 1 {
		t.Errorf("sent %d notifications, want 1", len(n.sent))
	}
}

func TestSampleDeduplicatesCandidates(t *testing.T) {
	cands := []model.Candidate{
		{BusinessID: "a"}, {BusinessID: "b"}, {BusinessID: "a"},
		{BusinessID: "c"}, {BusinessID: "b"}, {BusinessID: "a"},
	}
	recs := map[string]*model.Record{
		"a": {BusinessID: "a", Name: "A", Address: "1 A St"},
		"b": {BusinessID: "b", Name: "B", Address: "2 B St"},
		"c": {BusinessID: "c", Name: "C", Address: "3 C St"},
	}
	q := &fakeQueue{msgs: []*queue.Message{requestMsg(t)}}
	n := &fakeNotifier{}
	p := newTestPipeline(q, &fakeIndex{candidates: cands}, &fakeStore{records: recs}, n)

	res, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if res.Recommended != 3 {
		t.Errorf("recommended = %d, want 3 after dedupe", res.Recommended)
	}
}

func TestSampleIsUniformWithoutReplacement(t *testing.T) {
	cands, _ := candidateSet(20, "italian")
	p := newTestPipeline(&fakeQueue{}, &fakeIndex{}, &fakeStore{}, &fakeNotifier{})

	valid := map[string]bool{}
	for _, c := range cands {
		valid[c.BusinessID] = true
	}

	// Property holds for any seed: 5 picks, all distinct, all from the input.
	for seed := int64(0); seed < 10; seed++ {
		p.rng = rand.New(rand.NewSource(seed))
		picks := p.sample(cands)
		if len(picks) != 5 {
			t.Fatalf("seed %d: sampled %d, want 5", seed, len(picks))
		}
		seen := map[string]bool{}
		for _, c := range picks {
			if !valid[c.BusinessID] {
				t.Errorf("seed %d: sampled unknown candidate %s", seed, c.BusinessID)
			}
			if seen[c.BusinessID] {
				t.Errorf("seed %d: candidate %s sampled twice", seed, c.BusinessID)
			}
			seen[c.BusinessID] = true
		}
	}
}
