package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDiscussion(t *testing.T) {
	okBefore := testutil.ToFloat64(DiscussionMutations.WithLabelValues("comment", "add", "ok"))
	errBefore := testutil.ToFloat64(DiscussionMutations.WithLabelValues("comment", "add", "error"))

	RecordDiscussion("comment", "add", nil)
	RecordDiscussion("comment", "add", errors.New("boom"))
	RecordDiscussion("comment", "add", nil)

	if got := testutil.ToFloat64(DiscussionMutations.WithLabelValues("comment", "add", "ok")) - okBefore; got != 2 {
		t.Errorf("ok delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(DiscussionMutations.WithLabelValues("comment", "add", "error")) - errBefore; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/videos", "200"))
	RecordHTTPRequest("GET", "/videos", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/videos", "200")) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}
