package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	appkafka "example.com/tuitergraph/internal/broker"
	"example.com/tuitergraph/internal/models"
	"example.com/tuitergraph/internal/relations"
	"example.com/tuitergraph/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

//
// --- Helpers ---
//

// generate JWT token for test user
func makeTestJWT(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return tokenStr
}

// create HTTP request with JWT token
func sendJSONRequest(t *testing.T, method, url string, body any, token string, expectedStatus int) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal failed: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		defer resp.Body.Close()
		t.Fatalf("expected %d, got %d: %s", expectedStatus, resp.StatusCode, string(b))
	}
	return resp
}

func decodeResp(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
}

//
// --- Setup test server ---
//

func setupTestServer(t *testing.T) (*Server, *store.MockStore, *appkafka.MockKafka, *httptest.Server) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret")

	mockStore := store.NewMock()
	mockKafka := &appkafka.MockKafka{}
	s := &Server{
		store:       mockStore,
		relations:   relations.New(mockStore),
		kafkaWriter: mockKafka,
	}

	return s, mockStore, mockKafka, httptest.NewServer(s.routes())
}

func registerUser(t *testing.T, ts *httptest.Server, username string) (string, string) {
	t.Helper()
	resp := sendJSONRequest(t, "POST", ts.URL+"/users", map[string]string{"username": username}, "", http.StatusOK)
	var out struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	decodeResp(t, resp, &out)
	if out.UserID == "" {
		t.Fatal("expected non-empty user id")
	}
	return out.UserID, makeTestJWT(out.UserID)
}

//
// --- Tests ---
//

func TestCreateUser(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	id, _ := registerUser(t, ts, "almaz")
	if id == "" {
		t.Fatal("expected non-empty user ID")
	}
}

// follow -> list followers -> unfollow over HTTP
func TestFollowFlow(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	almazID, almazToken := registerUser(t, ts, "almaz")
	nurID, nurToken := registerUser(t, ts, "nur")

	sendJSONRequest(t, "POST", ts.URL+"/follows", map[string]string{"followee_id": nurID}, almazToken, http.StatusOK)

	// duplicate follow is a conflict
	sendJSONRequest(t, "POST", ts.URL+"/follows", map[string]string{"followee_id": nurID}, almazToken, http.StatusConflict)

	resp := sendJSONRequest(t, "GET", ts.URL+"/followers", nil, nurToken, http.StatusOK)
	var followers []models.Relation
	decodeResp(t, resp, &followers)
	if len(followers) != 1 || followers[0].SubjectID != almazID {
		t.Fatalf("unexpected followers listing: %+v", followers)
	}

	resp = sendJSONRequest(t, "DELETE", ts.URL+"/follows", map[string]string{"followee_id": nurID}, almazToken, http.StatusOK)
	var out models.Outcome
	decodeResp(t, resp, &out)
	if out.Removed != 1 {
		t.Fatalf("expected removed=1, got %d", out.Removed)
	}
}

// like -> counts -> dislike -> clear over HTTP
func TestReactionFlow(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, token := registerUser(t, ts, "almaz")

	resp := sendJSONRequest(t, "POST", ts.URL+"/tuits", map[string]string{"body": "hello world"}, token, http.StatusOK)
	var tuit models.Tuit
	decodeResp(t, resp, &tuit)

	setReaction := func(reaction string, expect string) {
		t.Helper()
		resp := sendJSONRequest(t, "PUT", ts.URL+"/reactions",
			map[string]string{"tuit_id": tuit.ID, "reaction": reaction}, token, http.StatusOK)
		var out map[string]string
		decodeResp(t, resp, &out)
		if out["reaction"] != expect {
			t.Fatalf("expected reaction=%s, got %s", expect, out["reaction"])
		}
	}
	counts := func(wantLikes, wantDislikes int) {
		t.Helper()
		resp := sendJSONRequest(t, "GET", ts.URL+"/counts?tuit_id="+tuit.ID, nil, token, http.StatusOK)
		var out map[string]int
		decodeResp(t, resp, &out)
		if out["likes"] != wantLikes || out["dislikes"] != wantDislikes {
			t.Fatalf("expected likes=%d dislikes=%d, got %v", wantLikes, wantDislikes, out)
		}
	}

	setReaction("like", "like")
	counts(1, 0)
	setReaction("dislike", "dislike")
	counts(0, 1)
	setReaction("none", "none")
	counts(0, 0)
}

func TestTuitReadback(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	userID, token := registerUser(t, ts, "almaz")

	resp := sendJSONRequest(t, "POST", ts.URL+"/tuits", map[string]string{"body": "hello world"}, token, http.StatusOK)
	var created models.Tuit
	decodeResp(t, resp, &created)

	resp = sendJSONRequest(t, "GET", ts.URL+"/tuits?tuit_id="+created.ID, nil, token, http.StatusOK)
	var got models.Tuit
	decodeResp(t, resp, &got)
	if got.ID != created.ID || got.AuthorID != userID || got.Body != "hello world" {
		t.Fatalf("unexpected tuit readback: %+v", got)
	}

	resp = sendJSONRequest(t, "GET", ts.URL+"/tuits?tuit_id=missing", nil, token, http.StatusNotFound)
	resp.Body.Close()
}

func TestMessageFlow(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	_, aliceToken := registerUser(t, ts, "alice")
	bobID, bobToken := registerUser(t, ts, "bob")

	resp := sendJSONRequest(t, "POST", ts.URL+"/messages",
		map[string]string{"recipient_id": bobID, "body": "hi bob"}, aliceToken, http.StatusOK)
	var msg models.Message
	decodeResp(t, resp, &msg)
	if msg.RecipientID != bobID || msg.Body != "hi bob" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	resp = sendJSONRequest(t, "GET", ts.URL+"/messages/received", nil, bobToken, http.StatusOK)
	var received []models.Message
	decodeResp(t, resp, &received)
	if len(received) != 1 {
		t.Fatalf("expected 1 received message, got %d", len(received))
	}

	resp = sendJSONRequest(t, "DELETE", ts.URL+"/messages",
		map[string]string{"message_id": msg.ID}, aliceToken, http.StatusOK)
	var out models.Outcome
	decodeResp(t, resp, &out)
	if out.Removed != 1 {
		t.Fatalf("expected removed=1, got %d", out.Removed)
	}
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	_, _, _, ts := setupTestServer(t)
	defer ts.Close()

	sendJSONRequest(t, "POST", ts.URL+"/follows", map[string]string{"followee_id": "x"}, "", http.StatusUnauthorized)
	sendJSONRequest(t, "GET", ts.URL+"/followers", nil, "", http.StatusUnauthorized)
}

// account deletion publishes a teardown event instead of deleting inline
func TestAccountTeardownPublishesEvent(t *testing.T) {
	_, _, mockKafka, ts := setupTestServer(t)
	defer ts.Close()

	userID, token := registerUser(t, ts, "almaz")

	resp := sendJSONRequest(t, "DELETE", ts.URL+"/account", nil, token, http.StatusAccepted)
	resp.Body.Close()

	written := mockKafka.Written()
	if len(written) != 1 {
		t.Fatalf("expected 1 kafka message, got %d", len(written))
	}
	var event models.TeardownEvent
	if err := json.Unmarshal(written[0].Value, &event); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	if event.UserID != userID {
		t.Fatalf("event for wrong user: %s", event.UserID)
	}
	if string(written[0].Key) != "account_deleted" {
		t.Fatalf("unexpected event key: %s", written[0].Key)
	}
}

func TestAccountTeardown_KafkaFailure(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	mockStore := store.NewMock()
	s := &Server{
		store:       mockStore,
		relations:   relations.New(mockStore),
		kafkaWriter: &appkafka.MockKafkaFail{},
	}
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	_, token := registerUser(t, ts, "almaz")
	sendJSONRequest(t, "DELETE", ts.URL+"/account", nil, token, http.StatusInternalServerError)
}

// store failures come back as plain 500s, not leaked details
func TestHandlers_StoreFailure(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	s := &Server{
		store:       &store.MockStoreFail{},
		relations:   relations.New(&store.MockStoreFail{}),
		kafkaWriter: &appkafka.MockKafka{},
	}
	ts := httptest.NewServer(s.routes())
	defer ts.Close()

	token := makeTestJWT("0b6ef1e7-92a4-4f33-bb57-8c1d3a6fd9a1")
	sendJSONRequest(t, "GET", ts.URL+"/followers", nil, token, http.StatusInternalServerError)
}
