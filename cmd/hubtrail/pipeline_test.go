package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/tinytelemetry/hubtrail/internal/eventsocket"
	"github.com/tinytelemetry/hubtrail/internal/exchange"
	"github.com/tinytelemetry/hubtrail/internal/httpserver"
	"github.com/tinytelemetry/hubtrail/internal/hubitat"
	"github.com/tinytelemetry/hubtrail/internal/ingest"
	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

// fakeHub serves /eventsocket and writes msgs to every connection.
func fakeHub(t *testing.T, msgs ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/eventsocket" {
			http.NotFound(w, r)
			return
		}
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.CloseNow()
		for _, m := range msgs {
			if err := ws.Write(r.Context(), websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		for {
			if _, _, err := ws.Read(context.Background()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForSeq(t *testing.T, store *seqstore.Store, want uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for store.LastSeq() < want {
		if time.Now().After(deadline) {
			t.Fatalf("last seq = %d, want %d", store.LastSeq(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPipeline_HubAndWebhookToExport(t *testing.T) {
	hub := fakeHub(t,
		`{"source":"DEVICE","name":"temperature","displayName":"Office","value":"21.5","unit":"°C","deviceId":5,"hubId":1,"installedAppId":0,"descriptionText":""}`,
		`{"source":"DEVICE","name":"switch","displayName":"Lamp","value":"maybe","unit":"","deviceId":6,"hubId":1,"installedAppId":0,"descriptionText":""}`,
		`{"source":"DEVICE","name":"switch","displayName":"Lamp","value":"on","unit":"","deviceId":6,"hubId":1,"installedAppId":0,"descriptionText":""}`,
	)

	store, err := seqstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("seqstore.Open: %v", err)
	}
	defer store.Close()

	client, err := eventsocket.NewClient(eventsocket.Config{HubURL: hub.URL, ReconnectDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	processor := ingest.NewProcessor(store, hubitat.NewDecoder(nil))
	api := httpserver.NewServer(httpserver.Options{Addr: "127.0.0.1:0", HookEnabled: true}, httpserver.Deps{
		Store:     store,
		Stats:     processor,
		ConnState: func() string { return client.State().String() },
	})
	if err := api.Start(); err != nil {
		t.Fatalf("api.Start: %v", err)
	}
	defer api.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sources []NamedLogSource
	for _, p := range buildInputPlugins(InputPluginConfig{Hub: client, HookServer: api, HookEnabled: true}) {
		if !p.Enabled() {
			continue
		}
		src, err := p.Build(ctx)
		if err != nil {
			t.Fatalf("Build %s: %v", p.Name(), err)
		}
		sources = append(sources, src)
	}
	mux := NewSourceMultiplexer(ctx, sources, 16)
	mux.Start()

	done := make(chan error, 1)
	go func() { done <- processor.Run(ctx, mux.Lines()) }()

	waitForSeq(t, store, 2)

	resp, err := http.Post("http://"+api.Addr()+"/hook/hubitat", "application/json",
		strings.NewReader(`{"source":"LOCATION","name":"sunset","displayName":"Home","value":"true","unit":"","deviceId":0,"hubId":1,"installedAppId":0,"descriptionText":""}`))
	if err != nil {
		t.Fatalf("POST hook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hook status = %d, want 200", resp.StatusCode)
	}
	waitForSeq(t, store, 3)

	resp, err = http.Get("http://" + api.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	var health map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if health["last_seq"] != float64(3) || health["rejected"] != float64(1) || health["connection"] != "connected" {
		t.Fatalf("health = %v", health)
	}

	cancel()
	mux.Stop()
	if err := <-done; err != nil {
		t.Fatalf("processor.Run: %v", err)
	}

	var out bytes.Buffer
	if _, err := exchange.Export(&out, store, exchange.EncodingJSON); err != nil {
		t.Fatalf("Export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	wantKinds := []string{`"kind":"DeviceTemperature"`, `"kind":"DeviceSwitch"`, `"kind":"LocationSunset"`}
	if len(lines) != len(wantKinds) {
		t.Fatalf("exported %d lines, want %d:\n%s", len(lines), len(wantKinds), out.String())
	}
	for i, want := range wantKinds {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %s, want %s", i+1, lines[i], want)
		}
	}
}
