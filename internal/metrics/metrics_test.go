package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()

	ObserveMessage("eventsocket", ResultAccepted)
	IncReject("parse_enum")
	ObserveAppend(42, 3*time.Millisecond)
	SetConnState("connected", []string{"disconnected", "connecting", "connected"})
	IncDial()
	IncBackup("success")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		`hubtrail_ingest_messages_total{result="accepted",source="eventsocket"} 1`,
		`hubtrail_ingest_rejects_total{reason="parse_enum"} 1`,
		`hubtrail_store_last_seq 42`,
		`hubtrail_eventsocket_state{state="connected"} 1`,
		`hubtrail_eventsocket_state{state="connecting"} 0`,
		`hubtrail_eventsocket_dials_total 1`,
		`hubtrail_backups_total{result="success"} 1`,
		`hubtrail_store_append_latency_seconds_count 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
