package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ananse-ntentan/backend/internal/imagegen"
	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/internal/service"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/ws"
)

// fakeMessages is an in-memory MessageStore.
type fakeMessages struct {
	mu         sync.Mutex
	rooms      map[uuid.UUID]*models.ChatRoom
	msgs       []*models.ChatMessage
	visualUsed int64
	savedSig   *string
	savedCtx   *string
	createErr  error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{rooms: map[uuid.UUID]*models.ChatRoom{}}
}

func (f *fakeMessages) CreateRoom(ctx context.Context, participants []string) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	room := &models.ChatRoom{ID: uuid.New(), Participants: models.Participants(participants), Active: true}
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeMessages) GetRoom(ctx context.Context, id uuid.UUID) (*models.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return nil, errors.New("room not found")
	}
	return room, nil
}

func (f *fakeMessages) RoomsForUser(ctx context.Context, userID string) ([]service.RoomPreview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var previews []service.RoomPreview
	for _, room := range f.rooms {
		if room.Participants.Contains(userID) {
			previews = append(previews, service.RoomPreview{Room: *room})
		}
	}
	return previews, nil
}

func (f *fakeMessages) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) UpdateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return nil
}

func (f *fakeMessages) RecentMessages(ctx context.Context, roomID uuid.UUID, limit int, before *time.Time) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for _, msg := range f.msgs {
		if msg.RoomID == roomID {
			out = append(out, *msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeMessages) CountMessages(ctx context.Context, roomID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, msg := range f.msgs {
		if msg.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessages) VisualSentToday(ctx context.Context, senderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visualUsed, nil
}

func (f *fakeMessages) UpdateRoomContext(ctx context.Context, roomID uuid.UUID, sig, storyCtx *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sig != nil {
		f.savedSig = sig
	}
	if storyCtx != nil {
		f.savedCtx = storyCtx
	}
	if room, ok := f.rooms[roomID]; ok {
		if sig != nil {
			room.ThoughtSignature = sig
		}
		if storyCtx != nil {
			room.StoryContext = storyCtx
		}
	}
	return nil
}

// fakeGen answers text and chat generations with canned responses.
type fakeGen struct {
	mu        sync.Mutex
	text      string
	textErr   error
	chat      string
	signature string
	textCalls int
	chatCalls int
	levels    []string
	gotSigs   []string
}

func (f *fakeGen) GenerateText(ctx context.Context, prompt, level string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	return f.text, f.textErr
}

func (f *fakeGen) GenerateChat(ctx context.Context, prompt, thoughtSignature, level string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	f.levels = append(f.levels, level)
	f.gotSigs = append(f.gotSigs, thoughtSignature)
	return f.chat, f.signature, nil
}

type fakePanels struct{}

func (fakePanels) GenerateAllPanelImages(ctx context.Context, panels []models.Panel, modifiers []string) []*imagegen.Image {
	out := make([]*imagegen.Image, len(panels))
	for i := range panels {
		out[i] = &imagegen.Image{Data: []byte("png"), ContentType: "image/png"}
	}
	return out
}

type memFiles struct {
	mu    sync.Mutex
	kinds []string
}

func (m *memFiles) Put(ctx context.Context, data []byte, filename string, meta media.Meta) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, meta.Kind)
	return uuid.New(), nil
}

func (m *memFiles) Get(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	return nil, media.ErrNotFound
}

func (m *memFiles) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	return nil, "", media.ErrNotFound
}

func (m *memFiles) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func newTestHub(store *fakeMessages, gen *fakeGen) *Hub {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	var visual *VisualComposer
	var coauthor *CoAuthor
	if gen != nil {
		visual = NewVisualComposer(gen, fakePanels{}, &memFiles{}, 5, log)
		coauthor = NewCoAuthor(gen, store, log)
	}
	return NewHub(store, visual, coauthor, log)
}

func connect(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	c := newClient(hub, nil)
	payload, _ := json.Marshal(ws.RegisterPayload{UserID: userID})
	hub.HandleFrame(c, ws.Frame{Type: ws.TypeRegister, Payload: payload})
	frame := nextFrame(t, c)
	require.Equal(t, ws.TypeRegistered, frame.Type)
	return c
}

// nextFrame pops one queued outbound frame.
func nextFrame(t *testing.T, c *Client) ws.Frame {
	t.Helper()
	select {
	case data := <-c.send:
		var frame ws.Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ws.Frame{}
	}
}

func sendFrame(hub *Hub, c *Client, frameType string, payload any) {
	data, _ := json.Marshal(payload)
	hub.HandleFrame(c, ws.Frame{Type: frameType, Payload: data})
}

func TestMatchmakingPairsTwoUsers(t *testing.T) {
	store := newFakeMessages()
	hub := newTestHub(store, nil)

	alice := connect(t, hub, "anon-alice")
	bob := connect(t, hub, "anon-bob")

	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	waiting := nextFrame(t, alice)
	require.Equal(t, ws.TypeWaiting, waiting.Type)
	var wp ws.WaitingPayload
	require.NoError(t, json.Unmarshal(waiting.Payload, &wp))
	assert.Equal(t, 1, wp.Position)

	sendFrame(hub, bob, ws.TypeFindMatch, nil)

	bobMatch := nextFrame(t, bob)
	aliceMatch := nextFrame(t, alice)
	require.Equal(t, ws.TypeMatchFound, bobMatch.Type)
	require.Equal(t, ws.TypeMatchFound, aliceMatch.Type)

	var bp, ap ws.MatchFoundPayload
	require.NoError(t, json.Unmarshal(bobMatch.Payload, &bp))
	require.NoError(t, json.Unmarshal(aliceMatch.Payload, &ap))
	assert.Equal(t, bp.Room, ap.Room)
	assert.Equal(t, "anon-alice", bp.PartnerID)
	assert.Equal(t, "anon-bob", ap.PartnerID)

	roomID, err := uuid.Parse(bp.Room)
	require.NoError(t, err)
	room, err := store.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.True(t, room.Participants.Contains("anon-alice"))
	assert.True(t, room.Participants.Contains("anon-bob"))
}

func TestMatchmakingThirdUserWaits(t *testing.T) {
	store := newFakeMessages()
	hub := newTestHub(store, nil)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")
	carol := connect(t, hub, "c")

	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	nextFrame(t, alice) // waiting
	sendFrame(hub, bob, ws.TypeFindMatch, nil)
	nextFrame(t, bob)   // match_found
	nextFrame(t, alice) // match_found

	sendFrame(hub, carol, ws.TypeFindMatch, nil)
	frame := nextFrame(t, carol)
	assert.Equal(t, ws.TypeWaiting, frame.Type)
}

func TestMatchmakingAlreadySearching(t *testing.T) {
	hub := newTestHub(newFakeMessages(), nil)
	alice := connect(t, hub, "a")

	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	require.Equal(t, ws.TypeWaiting, nextFrame(t, alice).Type)

	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	assert.Equal(t, ws.TypeAlreadySearching, nextFrame(t, alice).Type)
}

func TestMatchmakingPrunesDisconnectedWaiter(t *testing.T) {
	hub := newTestHub(newFakeMessages(), nil)

	alice := connect(t, hub, "a")
	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	nextFrame(t, alice)
	hub.Unregister(alice)

	bob := connect(t, hub, "b")
	sendFrame(hub, bob, ws.TypeFindMatch, nil)
	frame := nextFrame(t, bob)
	assert.Equal(t, ws.TypeWaiting, frame.Type, "stale waiter should be pruned, not matched")
}

func TestDisconnectRemovesFromQueue(t *testing.T) {
	hub := newTestHub(newFakeMessages(), nil)
	alice := connect(t, hub, "a")
	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	nextFrame(t, alice)

	hub.Unregister(alice)

	hub.mu.Lock()
	depth := len(hub.queue)
	hub.mu.Unlock()
	assert.Zero(t, depth)
}

func TestMatchmakingRoomFailureKeepsPartnerQueued(t *testing.T) {
	store := newFakeMessages()
	hub := newTestHub(store, nil)

	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")
	carol := connect(t, hub, "c")

	sendFrame(hub, alice, ws.TypeFindMatch, nil)
	require.Equal(t, ws.TypeWaiting, nextFrame(t, alice).Type)

	store.mu.Lock()
	store.createErr = errors.New("db down")
	store.mu.Unlock()
	sendFrame(hub, bob, ws.TypeFindMatch, nil)
	require.Equal(t, ws.TypeError, nextFrame(t, bob).Type)

	// The waiter kept their spot and still matches once the store
	// recovers.
	store.mu.Lock()
	store.createErr = nil
	store.mu.Unlock()
	sendFrame(hub, carol, ws.TypeFindMatch, nil)

	aliceMatch := nextFrame(t, alice)
	carolMatch := nextFrame(t, carol)
	require.Equal(t, ws.TypeMatchFound, aliceMatch.Type)
	require.Equal(t, ws.TypeMatchFound, carolMatch.Type)

	var ap ws.MatchFoundPayload
	require.NoError(t, json.Unmarshal(aliceMatch.Payload, &ap))
	assert.Equal(t, "c", ap.PartnerID)
}

func TestSendMessageDeliveredToPartner(t *testing.T) {
	store := newFakeMessages()
	hub := newTestHub(store, nil)
	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeSendMessage, ws.SendMessagePayload{RoomID: room.ID.String(), Content: "hello"})

	frame := nextFrame(t, bob)
	require.Equal(t, ws.TypeMessage, frame.Type)
	var mp ws.MessagePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &mp))
	assert.Equal(t, "hello", mp.Message.Content)
	assert.Equal(t, "a", mp.Message.SenderID)
	assert.Equal(t, models.MessageTypeText, mp.Message.Type)
}

func TestUnregisteredClientRejected(t *testing.T) {
	hub := newTestHub(newFakeMessages(), nil)
	c := newClient(hub, nil)

	sendFrame(hub, c, ws.TypeFindMatch, nil)
	frame := nextFrame(t, c)
	assert.Equal(t, ws.TypeError, frame.Type)
}

func TestVisualMessageQuotaRejected(t *testing.T) {
	store := newFakeMessages()
	store.visualUsed = 5
	gen := &fakeGen{}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeSendVisualMessage, ws.SendVisualMessagePayload{
		RoomID: room.ID.String(),
		Prompt: "a dragon",
	})

	frame := nextFrame(t, alice)
	require.Equal(t, ws.TypeVisualLimitReached, frame.Type)
	var lp ws.VisualLimitPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &lp))
	assert.Equal(t, int64(5), lp.Used)
	assert.Equal(t, 5, lp.Limit)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.Zero(t, gen.textCalls, "no generation should run at quota")
}

func TestVisualMessageGenerates(t *testing.T) {
	store := newFakeMessages()
	gen := &fakeGen{text: `{"title":"The Dragon","panels":[
		{"number":1,"scene":"cave","description":"A dragon sleeps","dialogue":"Zzz"},
		{"number":2,"scene":"cave mouth","description":"The dragon wakes","dialogue":"Who dares?"}]}`}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeSendVisualMessage, ws.SendVisualMessagePayload{
		RoomID: room.ID.String(),
		Prompt: "a dragon",
		Panels: 2,
	})

	generating := nextFrame(t, alice)
	require.Equal(t, ws.TypeVisualGenerating, generating.Type)
	var gp ws.VisualGeneratingPayload
	require.NoError(t, json.Unmarshal(generating.Payload, &gp))
	assert.Equal(t, int64(4), gp.Remaining)

	result := nextFrame(t, alice)
	require.Equal(t, ws.TypeVisualMessage, result.Type)
	var vp ws.VisualMessagePayload
	require.NoError(t, json.Unmarshal(result.Payload, &vp))
	assert.Equal(t, "The Dragon", vp.Title)
	require.Len(t, vp.Panels, 2)
	assert.NotNil(t, vp.Panels[0].ImageFileID)

	partnerCopy := nextFrame(t, bob)
	assert.Equal(t, ws.TypeVisualMessage, partnerCopy.Type)
}

func TestVisualMessageFailureMarksFailed(t *testing.T) {
	store := newFakeMessages()
	gen := &fakeGen{textErr: errors.New("provider down")}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeSendVisualMessage, ws.SendVisualMessagePayload{
		RoomID: room.ID.String(),
		Prompt: "a dragon",
	})

	require.Equal(t, ws.TypeVisualGenerating, nextFrame(t, alice).Type)
	frame := nextFrame(t, alice)
	require.Equal(t, ws.TypeVisualError, frame.Type)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.msgs, 1)
	assert.Equal(t, models.VisualStatusFailed, store.msgs[0].VisualStatus)
}

func TestStartAIStorySeedsContext(t *testing.T) {
	store := newFakeMessages()
	gen := &fakeGen{chat: "Once, beneath the baobab...", signature: "sig-abc"}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeStartAIStory, ws.StartAIStoryPayload{
		RoomID: room.ID.String(),
		Prompt: "a clever spider",
	})

	require.Equal(t, ws.TypeAIThinking, nextFrame(t, alice).Type)
	frame := nextFrame(t, alice)
	require.Equal(t, ws.TypeAIStoryResponse, frame.Type)

	var rp ws.AIStoryResponsePayload
	require.NoError(t, json.Unmarshal(frame.Payload, &rp))
	assert.True(t, rp.HasThoughtSignature)
	assert.Equal(t, models.SenderAI, rp.Message.SenderID)
	assert.Equal(t, models.MessageTypeAIStory, rp.Message.Type)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotNil(t, store.savedCtx)
	assert.Equal(t, "Story premise: a clever spider", *store.savedCtx)
	require.NotNil(t, store.savedSig)
	assert.Equal(t, "sig-abc", *store.savedSig)
}

func TestSendAIMessageDeliversBothSidesToPartner(t *testing.T) {
	store := newFakeMessages()
	gen := &fakeGen{chat: "The spider grinned.", signature: "sig-1"}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")
	bob := connect(t, hub, "b")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	sendFrame(hub, alice, ws.TypeSendAIMessage, ws.SendAIMessagePayload{
		RoomID:  room.ID.String(),
		Content: "And then?",
	})

	require.Equal(t, ws.TypeAIThinking, nextFrame(t, alice).Type)
	require.Equal(t, ws.TypeAIStoryResponse, nextFrame(t, alice).Type)

	userCopy := nextFrame(t, bob)
	aiCopy := nextFrame(t, bob)
	assert.Equal(t, ws.TypeMessage, userCopy.Type)
	assert.Equal(t, ws.TypeAIStoryResponse, aiCopy.Type)
}

func TestSendAIMessageSuppliesStoredSignature(t *testing.T) {
	store := newFakeMessages()
	gen := &fakeGen{chat: "The web tightened.", signature: "sig-2"}
	hub := newTestHub(store, gen)
	alice := connect(t, hub, "a")

	room, err := store.CreateRoom(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	stored := "sig-1"
	require.NoError(t, store.UpdateRoomContext(context.Background(), room.ID, &stored, nil))

	sendFrame(hub, alice, ws.TypeSendAIMessage, ws.SendAIMessagePayload{
		RoomID:  room.ID.String(),
		Content: "And then?",
	})

	require.Equal(t, ws.TypeAIThinking, nextFrame(t, alice).Type)
	require.Equal(t, ws.TypeAIStoryResponse, nextFrame(t, alice).Type)

	// The persisted signature must reach the provider on the next turn.
	gen.mu.Lock()
	defer gen.mu.Unlock()
	require.Len(t, gen.gotSigs, 1)
	assert.Equal(t, "sig-1", gen.gotSigs[0])
}

func TestClampPanels(t *testing.T) {
	assert.Equal(t, 3, ClampPanels(0))
	assert.Equal(t, 2, ClampPanels(1))
	assert.Equal(t, 2, ClampPanels(2))
	assert.Equal(t, 5, ClampPanels(5))
	assert.Equal(t, 5, ClampPanels(9))
}

func TestComposeRejectsSinglePanel(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	gen := &fakeGen{text: `{"title":"Tiny","panels":[{"number":1,"description":"only one"}]}`}
	composer := NewVisualComposer(gen, fakePanels{}, &memFiles{}, 5, log)

	_, _, err := composer.Compose(context.Background(), "hello", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough panels")
}

func TestComposeStoresChatPanelKind(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	gen := &fakeGen{text: `{"title":"Two","panels":[
		{"number":1,"description":"a"},{"number":2,"description":"b"}]}`}
	files := &memFiles{}
	composer := NewVisualComposer(gen, fakePanels{}, files, 5, log)

	title, panels, err := composer.Compose(context.Background(), "hello", 2)
	require.NoError(t, err)
	assert.Equal(t, "Two", title)
	require.Len(t, panels, 2)
	files.mu.Lock()
	defer files.mu.Unlock()
	assert.Equal(t, []string{models.MediaKindChatPanel, models.MediaKindChatPanel}, files.kinds)
}
