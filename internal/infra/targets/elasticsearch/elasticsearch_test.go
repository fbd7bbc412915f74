package elasticsearch

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmrzaf/taxgen/internal/domain"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping due to restricted socket sandbox: %v", err)
	}
	ts := httptest.NewUnstartedServer(h)
	ts.Listener = ln
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func TestElasticsearchTarget_BasicFlow(t *testing.T) {
	var bulk string
	ts := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":{"number":"8.12.0"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/mef_return_header":
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"keyword"`) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case r.Method == http.MethodPost && r.URL.Path == "/mef_return_header/_delete_by_query":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"deleted":1}`))
		case r.Method == http.MethodPost && r.URL.Path == "/_bulk":
			body, _ := io.ReadAll(r.Body)
			bulk = string(body)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"errors":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	tgt := NewElasticsearchTarget(ts.URL, "SubmissionId")
	if err := tgt.Connect(); err != nil {
		t.Fatal(err)
	}
	spec := &domain.TableSpec{Name: "MEF_Return_Header", Columns: []string{"SubmissionId", "IsFraud"}}
	if err := tgt.CreateTableIfNotExists(spec); err != nil {
		t.Fatal(err)
	}
	if err := tgt.InsertBatch(spec.Name, spec.Columns, [][]string{{"s1", "0"}}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(bulk, `"_id":"s1"`) || !strings.Contains(bulk, `"_index":"mef_return_header"`) {
		t.Fatalf("unexpected bulk payload: %s", bulk)
	}
	if !strings.Contains(bulk, `"IsFraud":"0"`) {
		t.Fatalf("bulk payload missing cell: %s", bulk)
	}
	if err := tgt.TruncateTable(spec.Name); err != nil {
		t.Fatal(err)
	}
	if ver, err := tgt.ServerVersion(); err != nil || ver != "8.12.0" {
		t.Fatalf("unexpected version result ver=%q err=%v", ver, err)
	}
}

func TestElasticsearchTarget_BulkItemErrors(t *testing.T) {
	ts := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(`{"version":{"number":"8.12.0"}}`))
		case "/_bulk":
			_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	tgt := NewElasticsearchTarget(ts.URL, "")
	if err := tgt.Connect(); err != nil {
		t.Fatal(err)
	}
	err := tgt.InsertBatch("identities", []string{"TaxpayerID"}, [][]string{{"1"}, {"2"}})
	if err == nil {
		t.Fatal("expected bulk error")
	}
	if !strings.Contains(err.Error(), "1 items failed") || !strings.Contains(err.Error(), "mapper_parsing_exception") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBulkPayloadWithoutIDColumn(t *testing.T) {
	tgt := NewElasticsearchTarget("localhost:9200", "Missing")
	payload, err := tgt.bulkPayload("identities", []string{"TaxpayerID"}, [][]string{{"123456789"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(payload), `"_id"`) {
		t.Fatalf("expected generated ids, got %s", payload)
	}
	if _, err := tgt.bulkPayload("identities", []string{"a", "b"}, [][]string{{"1"}}); err == nil {
		t.Fatal("expected ragged row error")
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"":                       "http://localhost:9200",
		"es:9200/":               "http://es:9200",
		"https://es.example/":    "https://es.example",
		" http://127.0.0.1:9200": "http://127.0.0.1:9200",
	}
	for in, want := range cases {
		if got := normalizeURL(in); got != want {
			t.Fatalf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
