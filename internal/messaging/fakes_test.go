package messaging

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/nexus-im/estatechat/store/conversation"
	"github.com/nexus-im/estatechat/store/message"
	"github.com/nexus-im/estatechat/store/user"
)

// ============================================================================
// In-memory stores
// ============================================================================

// memoryDB backs both fake stores so appends can bump conversation activity.
type memoryDB struct {
	mu            sync.Mutex
	conversations map[string]*conversation.Conversation
	keys          map[string]string
	messages      []*message.Message
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		conversations: make(map[string]*conversation.Conversation),
		keys:          make(map[string]string),
	}
}

func keyString(k conversation.Key) string {
	if k.ListingID == nil {
		return fmt.Sprintf("%d:%d:-", k.Smaller, k.Larger)
	}
	return fmt.Sprintf("%d:%d:%d", k.Smaller, k.Larger, *k.ListingID)
}

func (db *memoryDB) conversationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.conversations)
}

// fakeConversationStore implements conversation.Store.
type fakeConversationStore struct {
	db        *memoryDB
	getErr    error
	createErr error
	listErr   error
	// missLookups makes the next n GetByKey calls report not found even when
	// the row exists, simulating a caller that lost the insert race.
	missLookups int
}

func (f *fakeConversationStore) GetByID(ctx context.Context, id string) (*conversation.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	c, ok := f.db.conversations[id]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeConversationStore) GetByKey(ctx context.Context, key conversation.Key) (*conversation.Conversation, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.missLookups > 0 {
		f.missLookups--
		return nil, conversation.ErrConversationNotFound
	}
	id, ok := f.db.keys[keyString(key)]
	if !ok {
		return nil, conversation.ErrConversationNotFound
	}
	cp := *f.db.conversations[id]
	return &cp, nil
}

func (f *fakeConversationStore) Create(ctx context.Context, convo *conversation.Conversation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	key := conversation.CanonicalKey(convo.ParticipantA, convo.ParticipantB, convo.ListingID)
	ks := keyString(key)
	if _, exists := f.db.keys[ks]; exists {
		return conversation.ErrConversationExists
	}

	convo.ID = uuid.NewString()
	convo.SmallerParticipant = key.Smaller
	convo.LargerParticipant = key.Larger
	cp := *convo
	f.db.conversations[convo.ID] = &cp
	f.db.keys[ks] = convo.ID
	return nil
}

func (f *fakeConversationStore) ListThreads(ctx context.Context, participantID int64, limit, offset int) ([]*conversation.Thread, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	var threads []*conversation.Thread
	for _, c := range f.db.conversations {
		if !c.HasParticipant(participantID) {
			continue
		}
		t := &conversation.Thread{Conversation: *c}
		for _, m := range f.db.messages {
			if m.ConversationID != c.ID {
				continue
			}
			if m.ReceiverID == participantID && !m.IsRead {
				t.UnreadCount++
			}
			if t.LastMessage == nil || !m.CreatedAt.Before(t.LastMessage.CreatedAt) {
				t.LastMessage = &conversation.LastMessage{
					ID:         m.ID,
					SenderID:   m.SenderID,
					ReceiverID: m.ReceiverID,
					Content:    m.Content,
					CreatedAt:  m.CreatedAt,
				}
			}
		}
		threads = append(threads, t)
	}

	sort.Slice(threads, func(i, j int) bool {
		if !threads[i].LastActivityAt.Equal(threads[j].LastActivityAt) {
			return threads[i].LastActivityAt.After(threads[j].LastActivityAt)
		}
		return threads[i].ID > threads[j].ID
	})

	if offset >= len(threads) {
		return []*conversation.Thread{}, nil
	}
	end := offset + limit
	if end > len(threads) {
		end = len(threads)
	}
	return threads[offset:end], nil
}

// fakeMessageStore implements message.Store.
type fakeMessageStore struct {
	db        *memoryDB
	appendErr error
	getErr    error
	markErr   error
}

func (f *fakeMessageStore) Append(ctx context.Context, m *message.Message) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	m.ID = uuid.NewString()
	m.IsRead = false
	cp := *m
	f.db.messages = append(f.db.messages, &cp)
	if c, ok := f.db.conversations[m.ConversationID]; ok && m.CreatedAt.After(c.LastActivityAt) {
		c.LastActivityAt = m.CreatedAt
	}
	return nil
}

func (f *fakeMessageStore) GetByID(ctx context.Context, id string) (*message.Message, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, message.ErrMessageNotFound
}

func (f *fakeMessageStore) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*message.Message, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()

	var result []*message.Message
	for _, m := range f.db.messages {
		if m.ConversationID == conversationID {
			cp := *m
			result = append(result, &cp)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return []*message.Message{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (f *fakeMessageStore) CountUnread(ctx context.Context, conversationID string, receiverID int64) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	count := 0
	for _, m := range f.db.messages {
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageStore) CountUnreadTotal(ctx context.Context, receiverID int64) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	count := 0
	for _, m := range f.db.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, id string, receiverID int64) (bool, error) {
	if f.markErr != nil {
		return false, f.markErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, m := range f.db.messages {
		if m.ID == id && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessageStore) MarkConversationRead(ctx context.Context, conversationID string, receiverID int64) (int64, error) {
	if f.markErr != nil {
		return 0, f.markErr
	}
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var changed int64
	for _, m := range f.db.messages {
		if m.ConversationID == conversationID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			changed++
		}
	}
	return changed, nil
}

// ============================================================================
// Collaborators
// ============================================================================

type fakeDirectory struct {
	profiles map[int64]*user.Profile
	err      error
}

func (f *fakeDirectory) GetBasicProfile(ctx context.Context, id int64) (*user.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.profiles[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeDirectory) GetBasicProfiles(ctx context.Context, ids []int64) (map[int64]*user.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[int64]*user.Profile)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

type fakeCatalog struct {
	titles map[int64]string
	err    error
}

func (f *fakeCatalog) GetTitles(ctx context.Context, ids []int64) (map[int64]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[int64]string)
	for _, id := range ids {
		if title, ok := f.titles[id]; ok {
			result[id] = title
		}
	}
	return result, nil
}

type notification struct {
	userID int64
	event  Event
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (r *recordingNotifier) Notify(userID int64, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{userID: userID, event: event})
}

func (r *recordingNotifier) eventsFor(userID int64, typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Event
	for _, n := range r.events {
		if n.userID == userID && n.event.Type == typ {
			result = append(result, n.event)
		}
	}
	return result
}

// ============================================================================
// Test Helper
// ============================================================================

type testEnv struct {
	service       *Service
	db            *memoryDB
	conversations *fakeConversationStore
	messages      *fakeMessageStore
	directory     *fakeDirectory
	catalog       *fakeCatalog
	notifier      *recordingNotifier
}

// steppingClock returns strictly increasing timestamps, one second apart.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()

	db := newMemoryDB()
	env := &testEnv{
		db:            db,
		conversations: &fakeConversationStore{db: db},
		messages:      &fakeMessageStore{db: db},
		directory:     &fakeDirectory{profiles: map[int64]*user.Profile{}},
		catalog:       &fakeCatalog{titles: map[int64]string{}},
		notifier:      &recordingNotifier{},
	}
	env.service = NewService(Deps{
		Conversations: env.conversations,
		Messages:      env.messages,
		Directory:     env.directory,
		Catalog:       env.catalog,
		Notifier:      env.notifier,
		Logger:        zaptest.NewLogger(t),
	}, Options{Now: steppingClock()})
	return env
}

func (e *testEnv) mustResolve(t *testing.T, caller, other int64, listingID *int64) *conversation.Conversation {
	t.Helper()
	convo, _, err := e.service.ResolveConversation(context.Background(), caller, other, listingID)
	if err != nil {
		t.Fatalf("ResolveConversation(%d, %d) failed: %v", caller, other, err)
	}
	return convo
}

func (e *testEnv) mustSend(t *testing.T, caller int64, conversationID, content string) *message.Message {
	t.Helper()
	msg, err := e.service.Send(context.Background(), caller, conversationID, content)
	if err != nil {
		t.Fatalf("Send by %d failed: %v", caller, err)
	}
	return msg
}

func int64Ptr(v int64) *int64 {
	return &v
}
