package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/tuitergraph/internal/models"
	"github.com/google/uuid"
)

type relationKey struct {
	Kind    models.Kind
	Subject string
	Object  string
}

// MockStore simulates the Cassandra relation tables for testing.
// Safe for concurrent use so toggle races can be exercised against it.
type MockStore struct {
	mu         sync.Mutex
	seq        int
	Users      map[string]string // user_id -> username
	Tuits      map[string]models.Tuit
	Relations  map[relationKey]models.Relation
	relOrder   map[relationKey]int
	Messages   map[string]models.Message
	ShouldFail bool // flag to simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:     make(map[string]string),
		Tuits:     make(map[string]models.Tuit),
		Relations: make(map[relationKey]models.Relation),
		relOrder:  make(map[relationKey]int),
		Messages:  make(map[string]models.Message),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) Exists(ctx context.Context, kind models.Kind, subject, object string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return false, errors.New("mock: exists failed")
	}
	_, ok := m.Relations[relationKey{kind, subject, object}]
	return ok, nil
}

func (m *MockStore) CreateRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Relation{}, errors.New("mock: create relation failed")
	}
	key := relationKey{kind, subject, object}
	if _, ok := m.Relations[key]; ok {
		return models.Relation{}, ErrDuplicateRelation
	}
	rel := models.Relation{Kind: kind, SubjectID: subject, ObjectID: object, CreatedAt: time.Now().UTC()}
	m.Relations[key] = rel
	m.seq++
	m.relOrder[key] = m.seq
	return rel, nil
}

func (m *MockStore) DeleteRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Outcome{}, errors.New("mock: delete relation failed")
	}
	key := relationKey{kind, subject, object}
	if _, ok := m.Relations[key]; !ok {
		return models.Outcome{Removed: 0}, nil
	}
	delete(m.Relations, key)
	delete(m.relOrder, key)
	return models.Outcome{Removed: 1}, nil
}

func (m *MockStore) DeleteBySubject(ctx context.Context, kind models.Kind, subject string) (models.Outcome, error) {
	if kind == models.KindMessage {
		return m.deleteMessagesWhere(func(msg models.Message) bool { return msg.SenderID == subject })
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Outcome{}, errors.New("mock: delete by subject failed")
	}
	removed := 0
	for key := range m.Relations {
		if key.Kind == kind && key.Subject == subject {
			delete(m.Relations, key)
			delete(m.relOrder, key)
			removed++
		}
	}
	return models.Outcome{Removed: removed}, nil
}

func (m *MockStore) DeleteByObject(ctx context.Context, kind models.Kind, object string) (models.Outcome, error) {
	if kind == models.KindMessage {
		return m.deleteMessagesWhere(func(msg models.Message) bool { return msg.RecipientID == object })
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Outcome{}, errors.New("mock: delete by object failed")
	}
	removed := 0
	for key := range m.Relations {
		if key.Kind == kind && key.Object == object {
			delete(m.Relations, key)
			delete(m.relOrder, key)
			removed++
		}
	}
	return models.Outcome{Removed: removed}, nil
}

func (m *MockStore) ListBySubject(ctx context.Context, kind models.Kind, subject string) ([]models.Relation, error) {
	return m.listWhere(func(key relationKey) bool { return key.Kind == kind && key.Subject == subject })
}

func (m *MockStore) ListByObject(ctx context.Context, kind models.Kind, object string) ([]models.Relation, error) {
	return m.listWhere(func(key relationKey) bool { return key.Kind == kind && key.Object == object })
}

// listWhere returns matching relations in insertion order, matching the
// stable storage order the real tables give.
func (m *MockStore) listWhere(match func(relationKey) bool) ([]models.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: list failed")
	}
	var keys []relationKey
	for key := range m.Relations {
		if match(key) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return m.relOrder[keys[i]] < m.relOrder[keys[j]] })
	var res []models.Relation
	for _, key := range keys {
		res = append(res, m.Relations[key])
	}
	return res, nil
}

func (m *MockStore) CountByObject(ctx context.Context, kind models.Kind, object string) (int, error) {
	rels, err := m.ListByObject(ctx, kind, object)
	if err != nil {
		return 0, err
	}
	return len(rels), nil
}

func (m *MockStore) CreateMessage(ctx context.Context, sender, recipient, body string) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Message{}, errors.New("mock: create message failed")
	}
	m.seq++
	msg := models.Message{
		ID:          uuid.NewString(),
		SenderID:    sender,
		RecipientID: recipient,
		Body:        body,
		// nanosecond offset keeps SentOn strictly increasing per call
		SentOn: time.Now().UTC().Add(time.Duration(m.seq) * time.Nanosecond),
	}
	m.Messages[msg.ID] = msg
	return msg, nil
}

func (m *MockStore) DeleteMessage(ctx context.Context, messageID string) (models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Outcome{}, errors.New("mock: delete message failed")
	}
	if _, ok := m.Messages[messageID]; !ok {
		return models.Outcome{Removed: 0}, nil
	}
	delete(m.Messages, messageID)
	return models.Outcome{Removed: 1}, nil
}

func (m *MockStore) ListSentMessages(ctx context.Context, sender string) ([]models.Message, error) {
	return m.listMessagesWhere(func(msg models.Message) bool { return msg.SenderID == sender })
}

func (m *MockStore) ListReceivedMessages(ctx context.Context, recipient string) ([]models.Message, error) {
	return m.listMessagesWhere(func(msg models.Message) bool { return msg.RecipientID == recipient })
}

func (m *MockStore) listMessagesWhere(match func(models.Message) bool) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: list messages failed")
	}
	var res []models.Message
	for _, msg := range m.Messages {
		if match(msg) {
			res = append(res, msg)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SentOn.Before(res[j].SentOn) })
	return res, nil
}

func (m *MockStore) deleteMessagesWhere(match func(models.Message) bool) (models.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Outcome{}, errors.New("mock: delete messages failed")
	}
	removed := 0
	for id, msg := range m.Messages {
		if match(msg) {
			delete(m.Messages, id)
			removed++
		}
	}
	return models.Outcome{Removed: removed}, nil
}

func (m *MockStore) CreateUser(ctx context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errors.New("mock: create user failed")
	}
	for id, u := range m.Users {
		if u == username {
			return id, nil
		}
	}
	id := uuid.NewString()
	m.Users[id] = username
	return id, nil
}

func (m *MockStore) GetUserIDByUsername(ctx context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return "", errors.New("mock: get user by username failed")
	}
	for id, u := range m.Users {
		if u == username {
			return id, nil
		}
	}
	return "", nil
}

func (m *MockStore) GetTuit(ctx context.Context, tuitID string) (models.Tuit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.Tuit{}, false, errors.New("mock: get tuit failed")
	}
	tuit, ok := m.Tuits[tuitID]
	return tuit, ok, nil
}

func (m *MockStore) CreateTuit(ctx context.Context, tuit models.Tuit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: create tuit failed")
	}
	m.Tuits[tuit.ID] = tuit
	return nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) Exists(ctx context.Context, kind models.Kind, subject, object string) (bool, error) {
	return false, errors.New("mock store exists failed")
}

func (m *MockStoreFail) CreateRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Relation, error) {
	return models.Relation{}, errors.New("mock store create relation failed")
}

func (m *MockStoreFail) DeleteRelation(ctx context.Context, kind models.Kind, subject, object string) (models.Outcome, error) {
	return models.Outcome{}, errors.New("mock store delete relation failed")
}

func (m *MockStoreFail) DeleteBySubject(ctx context.Context, kind models.Kind, subject string) (models.Outcome, error) {
	return models.Outcome{}, errors.New("mock store delete by subject failed")
}

func (m *MockStoreFail) DeleteByObject(ctx context.Context, kind models.Kind, object string) (models.Outcome, error) {
	return models.Outcome{}, errors.New("mock store delete by object failed")
}

func (m *MockStoreFail) ListBySubject(ctx context.Context, kind models.Kind, subject string) ([]models.Relation, error) {
	return nil, errors.New("mock store list by subject failed")
}

func (m *MockStoreFail) ListByObject(ctx context.Context, kind models.Kind, object string) ([]models.Relation, error) {
	return nil, errors.New("mock store list by object failed")
}

func (m *MockStoreFail) CountByObject(ctx context.Context, kind models.Kind, object string) (int, error) {
	return 0, errors.New("mock store count failed")
}

func (m *MockStoreFail) CreateMessage(ctx context.Context, sender, recipient, body string) (models.Message, error) {
	return models.Message{}, errors.New("mock store create message failed")
}

func (m *MockStoreFail) DeleteMessage(ctx context.Context, messageID string) (models.Outcome, error) {
	return models.Outcome{}, errors.New("mock store delete message failed")
}

func (m *MockStoreFail) ListSentMessages(ctx context.Context, sender string) ([]models.Message, error) {
	return nil, errors.New("mock store list sent failed")
}

func (m *MockStoreFail) ListReceivedMessages(ctx context.Context, recipient string) ([]models.Message, error) {
	return nil, errors.New("mock store list received failed")
}

func (m *MockStoreFail) CreateUser(ctx context.Context, username string) (string, error) {
	return "", errors.New("mock store create user failed")
}

func (m *MockStoreFail) GetUserIDByUsername(ctx context.Context, username string) (string, error) {
	return "", errors.New("mock store get user by username failed")
}

func (m *MockStoreFail) CreateTuit(ctx context.Context, tuit models.Tuit) error {
	return errors.New("mock store create tuit failed")
}

func (m *MockStoreFail) GetTuit(ctx context.Context, tuitID string) (models.Tuit, bool, error) {
	return models.Tuit{}, false, errors.New("mock store get tuit failed")
}
