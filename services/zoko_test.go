package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"whatsapp-bot/models"
)

// recordingServer captures request bodies and serves statuses in sequence,
// repeating the last one.
type recordingServer struct {
	mu       sync.Mutex
	bodies   []map[string]any
	statuses []int
	server   *httptest.Server
}

func newRecordingServer(t *testing.T, statuses ...int) *recordingServer {
	t.Helper()
	if len(statuses) == 0 {
		statuses = []int{http.StatusOK}
	}
	rs := &recordingServer{statuses: statuses}
	rs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		body["_apikey"] = r.Header.Get("apikey")

		rs.mu.Lock()
		rs.bodies = append(rs.bodies, body)
		status := rs.statuses[0]
		if len(rs.statuses) > 1 {
			rs.statuses = rs.statuses[1:]
		}
		rs.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(`{"status": "queued"}`))
	}))
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *recordingServer) count() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return len(rs.bodies)
}

func (rs *recordingServer) body(i int) map[string]any {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.bodies[i]
}

func newTestZokoClient(rs *recordingServer) *ZokoClient {
	client := NewZokoClient(rs.server.URL, "test-key", 0, nil)
	client.retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	client.listEndpoints = []string{rs.server.URL}
	return client
}

func TestValidatePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+420777888999", "420777888999", false},
		{"420777888999", "420777888999", false},
		{"+14155552671", "14155552671", false},
		{"0420777888999", "", true}, // leading zero
		{"+420 777 888", "", true},  // spaces
		{"12345", "", true},         // too short
		{"not-a-number", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := validatePhone(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("validatePhone(%q) accepted an invalid number", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("validatePhone(%q) = %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("validatePhone(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSend_TextPayload(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	err := client.Send(context.Background(), "+420777888999", models.TextMessage{Body: "Hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rs.body(0)
	if body["channel"] != "whatsapp" || body["type"] != "text" {
		t.Errorf("channel/type = %v/%v", body["channel"], body["type"])
	}
	if body["recipient"] != "420777888999" {
		t.Errorf("recipient = %v, want the plus stripped", body["recipient"])
	}
	if body["message"] != "Hello" {
		t.Errorf("message = %v", body["message"])
	}
	if body["_apikey"] != "test-key" {
		t.Errorf("apikey header = %v", body["_apikey"])
	}
}

func TestSend_ButtonPayload(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	msg := models.ButtonMessage{
		TemplateID: models.UpsellTemplateID,
		Args:       []string{"img", "title", "order", "url"},
	}
	if err := client.Send(context.Background(), "420777888999", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rs.body(0)
	if body["type"] != "buttonTemplate" {
		t.Errorf("type = %v", body["type"])
	}
	if body["templateId"] != models.UpsellTemplateID {
		t.Errorf("templateId = %v", body["templateId"])
	}
	args, _ := body["templateArgs"].([]any)
	if len(args) != 4 || args[1] != "title" {
		t.Errorf("templateArgs = %v", args)
	}
}

func TestSend_ListPayloadShape(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	msg := models.ListMessage{
		Header: "LEVA Houses",
		Body:   "Found 2 products",
		Items: []models.ListItem{
			{ID: "a", Payload: "a", Title: "One", Description: "da"},
			{ID: "b", Payload: "b", Title: "Two", Description: "db"},
		},
	}
	if err := client.Send(context.Background(), "420777888999", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rs.body(0)
	if body["type"] != "interactive_list" {
		t.Errorf("type = %v", body["type"])
	}

	il, _ := body["interactiveList"].(map[string]any)
	if il == nil {
		t.Fatalf("interactiveList missing: %v", body)
	}
	ilBody, _ := il["body"].(map[string]any)
	if ilBody["text"] != "Found 2 products" {
		t.Errorf("body.text = %v", ilBody["text"])
	}
	list, _ := il["list"].(map[string]any)
	if list["title"] != "LEVA Houses" {
		t.Errorf("list.title = %v", list["title"])
	}
	header, _ := list["header"].(map[string]any)
	if header["text"] != "LEVA Houses" {
		t.Errorf("list.header.text = %v", header["text"])
	}
	sections, _ := list["sections"].([]any)
	if len(sections) != 1 {
		t.Fatalf("sections = %v, want one", sections)
	}
	section, _ := sections[0].(map[string]any)
	if section["title"] != "LEVA Houses" {
		t.Errorf("section.title = %v", section["title"])
	}
	items, _ := section["items"].([]any)
	if len(items) != 2 {
		t.Errorf("items = %v", items)
	}
}

func TestSendList_EmptyItemsNeverSent(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	err := client.Send(context.Background(), "420777888999", models.ListMessage{Header: "H", Body: "B"})
	if err == nil {
		t.Fatal("empty list was accepted")
	}
	if !strings.Contains(err.Error(), "no items") {
		t.Errorf("error = %v", err)
	}
	if rs.count() != 0 {
		t.Errorf("requests = %d, want none", rs.count())
	}
}

func TestSendList_EndpointFallback(t *testing.T) {
	failing := newRecordingServer(t, http.StatusBadRequest)
	working := newRecordingServer(t)

	client := newTestZokoClient(failing)
	client.listEndpoints = []string{failing.server.URL, working.server.URL}

	msg := models.ListMessage{
		Header: "H",
		Body:   "B",
		Items:  []models.ListItem{{ID: "a", Payload: "a", Title: "One", Description: "d"}},
	}
	if err := client.Send(context.Background(), "420777888999", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if failing.count() != 1 {
		t.Errorf("failing endpoint got %d requests, want 1", failing.count())
	}
	if working.count() != 1 {
		t.Errorf("working endpoint got %d requests, want 1", working.count())
	}
}

func TestSend_RetriesTransientFailures(t *testing.T) {
	rs := newRecordingServer(t, http.StatusInternalServerError, http.StatusInternalServerError, http.StatusOK)
	client := newTestZokoClient(rs)

	if err := client.SendText(context.Background(), "420777888999", "hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if rs.count() != 3 {
		t.Errorf("requests = %d, want 3", rs.count())
	}
}

func TestSend_NoRetryOnClientError(t *testing.T) {
	rs := newRecordingServer(t, http.StatusBadRequest)
	client := newTestZokoClient(rs)

	if err := client.SendText(context.Background(), "420777888999", "hi"); err == nil {
		t.Fatal("client error was swallowed")
	}
	if rs.count() != 1 {
		t.Errorf("requests = %d, want 1", rs.count())
	}
}

func TestSend_ToolInvocationRejected(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	err := client.Send(context.Background(), "420777888999", models.ToolInvocation{ToolName: "search_products_with_handoff"})
	if err == nil {
		t.Fatal("tool invocation was accepted by the gateway")
	}
	if !strings.Contains(err.Error(), "not a sendable message") {
		t.Errorf("error = %v", err)
	}
	if rs.count() != 0 {
		t.Errorf("requests = %d, want none", rs.count())
	}
}

func TestSend_InvalidRecipient(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)

	if err := client.SendText(context.Background(), "bogus", "hi"); err == nil {
		t.Fatal("invalid recipient was accepted")
	}
	if rs.count() != 0 {
		t.Errorf("requests = %d, want none", rs.count())
	}
}

func TestSendAll_OrderAndPacing(t *testing.T) {
	rs := newRecordingServer(t)
	client := newTestZokoClient(rs)
	client.sendDelay = 30 * time.Millisecond

	messages := []models.CanonicalMessage{
		models.TextMessage{Body: "first"},
		models.ButtonMessage{TemplateID: models.UpsellTemplateID, Args: []string{"i", "t", "o", "u"}},
	}

	start := time.Now()
	if err := client.SendAll(context.Background(), "420777888999", messages); err != nil {
		t.Fatalf("SendAll: %v", err)
	}
	elapsed := time.Since(start)

	if rs.count() != 2 {
		t.Fatalf("requests = %d, want 2", rs.count())
	}
	if rs.body(0)["type"] != "text" || rs.body(1)["type"] != "buttonTemplate" {
		t.Errorf("order = %v, %v", rs.body(0)["type"], rs.body(1)["type"])
	}
	if elapsed < 25*time.Millisecond {
		t.Errorf("elapsed = %v, want at least the send delay between messages", elapsed)
	}
}

func TestSendAll_ContinuesAfterFailure(t *testing.T) {
	rs := newRecordingServer(t, http.StatusBadRequest, http.StatusOK)
	client := newTestZokoClient(rs)

	messages := []models.CanonicalMessage{
		models.TextMessage{Body: "fails"},
		models.TextMessage{Body: "delivered"},
	}
	err := client.SendAll(context.Background(), "420777888999", messages)
	if err == nil {
		t.Fatal("SendAll swallowed the failure")
	}
	if rs.count() != 2 {
		t.Errorf("requests = %d, want both attempted", rs.count())
	}
	if rs.body(1)["message"] != "delivered" {
		t.Errorf("second message = %v", rs.body(1)["message"])
	}
}
