package exchange

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tinytelemetry/hubtrail/internal/hubitat"
	"github.com/tinytelemetry/hubtrail/internal/record"
	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

func openStore(t *testing.T) *seqstore.Store {
	t.Helper()
	s, err := seqstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("seqstore.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func appendAll(t *testing.T, s *seqstore.Store, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		if _, err := s.Append([]byte(p)); err != nil {
			t.Fatalf("Append(%q): %v", p, err)
		}
	}
}

func collect(t *testing.T, s *seqstore.Store) []record.Record {
	t.Helper()
	var out []record.Record
	for rec := range s.All() {
		out = append(out, rec)
	}
	return out
}

func TestExportRaw(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	appendAll(t, s, "a", "b")

	var buf bytes.Buffer
	stats, err := Export(&buf, s, EncodingRaw)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got, want := buf.String(), "1:a\n2:b\n"; got != want {
		t.Fatalf("export = %q, want %q", got, want)
	}
	if stats.Records != 2 {
		t.Fatalf("records = %d, want 2", stats.Records)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	src := openStore(t)
	appendAll(t, src, "a", "b")

	var buf bytes.Buffer
	if _, err := Export(&buf, src, EncodingRaw); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := openStore(t)
	appendAll(t, dst, "existing")
	stats, err := Import(&buf, dst, ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Imported != 2 || stats.FirstSeq != 2 || stats.LastSeq != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	got := collect(t, dst)
	want := []record.Record{{Seq: 1, Payload: []byte("existing")}, {Seq: 2, Payload: []byte("a")}, {Seq: 3, Payload: []byte("b")}}
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Seq != want[i].Seq || !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Fatalf("record %d = %d:%q, want %d:%q", i, got[i].Seq, got[i].Payload, want[i].Seq, want[i].Payload)
		}
	}
}

func TestExportRawRejectsNewline(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	appendAll(t, s, "ok", "bad\npayload")

	_, err := Export(&bytes.Buffer{}, s, EncodingRaw)
	if !errors.Is(err, ErrUnframeable) {
		t.Fatalf("Export error = %v, want ErrUnframeable", err)
	}
	if !strings.Contains(err.Error(), "seq 2") {
		t.Fatalf("error %q does not name seq 2", err)
	}
}

func TestBase64RoundTripBinary(t *testing.T) {
	t.Parallel()
	src := openStore(t)
	binary := []byte{0x00, '\n', ':', 0xff, '\r'}
	if _, err := src.Append(binary); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var buf bytes.Buffer
	if _, err := Export(&buf, src, EncodingBase64); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := openStore(t)
	if _, err := Import(&buf, dst, ImportOptions{Encoding: EncodingBase64}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	got := collect(t, dst)
	if len(got) != 1 || !bytes.Equal(got[0].Payload, binary) {
		t.Fatalf("imported = %+v, want payload %x", got, binary)
	}
}

func TestImportLineHandling(t *testing.T) {
	t.Parallel()
	dst := openStore(t)

	in := "no colon here\n\n7:value:with:colons\n9:\n12:last without newline"
	stats, err := Import(strings.NewReader(in), dst, ImportOptions{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Imported != 3 || stats.Skipped != 2 {
		t.Fatalf("stats = %+v, want 3 imported 2 skipped", stats)
	}

	got := collect(t, dst)
	want := []string{"value:with:colons", "", "last without newline"}
	for i, w := range want {
		if got[i].Seq != uint64(i+1) || string(got[i].Payload) != w {
			t.Fatalf("record %d = %d:%q, want %d:%q", i, got[i].Seq, got[i].Payload, i+1, w)
		}
	}
}

func TestImportVerify(t *testing.T) {
	t.Parallel()
	ev := hubitat.Event{
		ObservedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DeviceName: "Garage",
		Payload:    hubitat.DeviceBattery{Percent: 90},
	}
	good, err := hubitat.MarshalEvent(ev)
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}

	src := openStore(t)
	if _, err := src.Append(good); err != nil {
		t.Fatalf("Append: %v", err)
	}
	appendAll(t, src, "garbage")

	var buf bytes.Buffer
	if _, err := Export(&buf, src, EncodingBase64); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := openStore(t)
	stats, err := Import(&buf, dst, ImportOptions{Encoding: EncodingBase64, Verify: true})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if stats.Imported != 1 || stats.Rejected != 1 {
		t.Fatalf("stats = %+v, want 1 imported 1 rejected", stats)
	}
}

func TestExportJSON(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	data, err := hubitat.MarshalEvent(hubitat.Event{
		ObservedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DeviceName: "Hall",
		DeviceID:   3,
		HubID:      1,
		Payload:    hubitat.DevicePresence{Presence: hubitat.Present},
	})
	if err != nil {
		t.Fatalf("MarshalEvent: %v", err)
	}
	if _, err := s.Append(data); err != nil {
		t.Fatalf("Append: %v", err)
	}
	appendAll(t, s, "not cbor")

	var buf bytes.Buffer
	stats, err := Export(&buf, s, EncodingJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if stats.Records != 1 || stats.Undecodable != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	want := `{"seq":1,"event":{"observed_at":"2024-05-01T00:00:00Z","device_name":"Hall","device_id":3,"hub_id":1,"kind":"DevicePresence","payload":{"presence":"present"}}}` + "\n"
	if buf.String() != want {
		t.Fatalf("json export = %s\nwant %s", buf.String(), want)
	}
}

func TestImportRejectsJSONEncoding(t *testing.T) {
	t.Parallel()
	if _, err := Import(strings.NewReader("1:x\n"), openStore(t), ImportOptions{Encoding: EncodingJSON}); err == nil {
		t.Fatal("expected error for json import")
	}
}

func TestParseEncoding(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Encoding{"": EncodingRaw, "RAW": EncodingRaw, "base64": EncodingBase64, " json ": EncodingJSON} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Fatalf("ParseEncoding(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("hex"); err == nil {
		t.Fatal("expected error for hex")
	}
}
