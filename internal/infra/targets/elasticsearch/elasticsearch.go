package elasticsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmrzaf/taxgen/internal/domain"
)

// Every generated cell is a string; indexing them as keywords keeps ids,
// zips and phone numbers exact.
var indexSettings = []byte(`{"mappings":{"dynamic_templates":[{"cells":{"match_mapping_type":"string","mapping":{"type":"keyword"}}}]}}`)

type ElasticsearchTarget struct {
	baseURL  string
	idColumn string
	client   *http.Client
}

// NewElasticsearchTarget indexes rows under their idColumn value when it is
// set and present in a table, otherwise under generated ids.
func NewElasticsearchTarget(dsn, idColumn string) *ElasticsearchTarget {
	return &ElasticsearchTarget{baseURL: normalizeURL(dsn), idColumn: idColumn}
}

func (t *ElasticsearchTarget) Connect() error {
	t.client = &http.Client{Timeout: 15 * time.Second}
	resp, err := t.client.Get(t.baseURL + "/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elasticsearch ping failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (t *ElasticsearchTarget) Close() error { return nil }

func (t *ElasticsearchTarget) ServerVersion() (string, error) {
	return GetServerVersion(t.baseURL)
}

func (t *ElasticsearchTarget) CreateTableIfNotExists(spec *domain.TableSpec) error {
	indexName := toIndexName(spec.Name)
	req, err := http.NewRequest(http.MethodPut, t.baseURL+"/"+indexName, bytes.NewReader(indexSettings))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(body), "resource_already_exists_exception") {
		return nil
	}
	return fmt.Errorf("elasticsearch create index failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (t *ElasticsearchTarget) TruncateTable(tableName string) error {
	indexName := toIndexName(tableName)
	payload := []byte(`{"query":{"match_all":{}}}`)
	req, err := http.NewRequest(http.MethodPost, t.baseURL+"/"+indexName+"/_delete_by_query?refresh=true", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elasticsearch truncate failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (t *ElasticsearchTarget) InsertBatch(tableName string, columns []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	payload, err := t.bulkPayload(toIndexName(tableName), columns, rows)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, t.baseURL+"/_bulk", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("elasticsearch bulk insert failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return bulkError(body)
}

func (t *ElasticsearchTarget) bulkPayload(indexName string, columns []string, rows [][]string) ([]byte, error) {
	idCol := -1
	for i, c := range columns {
		if t.idColumn != "" && c == t.idColumn {
			idCol = i
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for ri, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", ri, len(row), len(columns))
		}
		action := map[string]string{"_index": indexName}
		if idCol >= 0 {
			action["_id"] = row[idCol]
		}
		if err := enc.Encode(map[string]any{"index": action}); err != nil {
			return nil, err
		}
		doc := make(map[string]string, len(columns))
		for i, col := range columns {
			doc[col] = row[i]
		}
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func bulkError(body []byte) error {
	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	_ = json.Unmarshal(body, &bulkResp)
	if !bulkResp.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range bulkResp.Items {
		for _, res := range item {
			if res.Status < 200 || res.Status > 299 {
				failed++
				if first == "" {
					first = res.Error.Type + ": " + res.Error.Reason
				}
			}
		}
	}
	if first == "" {
		return fmt.Errorf("elasticsearch bulk insert returned errors")
	}
	return fmt.Errorf("elasticsearch bulk insert: %d items failed, first: %s", failed, first)
}

func normalizeURL(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "http://localhost:9200"
	}
	if strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") {
		return strings.TrimRight(dsn, "/")
	}
	return "http://" + strings.TrimRight(dsn, "/")
}

func toIndexName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return url.PathEscape(name)
}

func GetServerVersion(dsn string) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	base := normalizeURL(dsn)
	resp, err := client.Get(base + "/")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var root struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", err
	}
	return root.Version.Number, nil
}
