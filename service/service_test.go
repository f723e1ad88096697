package service

import (
	"testing"

	"github.com/dsemenov/converse/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users        map[string]model.User
	participants map[int64]map[string]bool
	messages     []model.Message
	chats        map[int64]model.Chat
	nextChatID   int64
	nextMsgID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[string]model.User),
		participants: make(map[int64]map[string]bool),
		chats:        make(map[int64]model.Chat),
	}
}

func (f *fakeStore) GetUser(id string) (model.User, error) { return f.users[id], nil }

func (f *fakeStore) UpsertUser(user model.User) (model.User, error) {
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeStore) ListUsers(excludeID string) ([]model.User, error) {
	var out []model.User
	for id, u := range f.users {
		if id != excludeID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) GetUserChats(string) ([]model.ChatWithParticipants, error) { return nil, nil }

func (f *fakeStore) GetChatByID(chatID int64) (model.ChatWithParticipants, error) {
	return model.ChatWithParticipants{Chat: f.chats[chatID]}, nil
}

func (f *fakeStore) GetOrCreateDirectChat(userID, otherUserID string) (model.Chat, error) {
	return f.CreateChat(model.Chat{IsGroup: false}, []string{userID, otherUserID})
}

func (f *fakeStore) CreateChat(chat model.Chat, participantIDs []string) (model.Chat, error) {
	f.nextChatID++
	chat.ID = f.nextChatID
	f.chats[chat.ID] = chat
	f.participants[chat.ID] = make(map[string]bool)
	for _, id := range participantIDs {
		f.participants[chat.ID][id] = true
	}
	return chat, nil
}

func (f *fakeStore) GetChatMessages(chatID int64) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(msg model.Message) (model.Message, error) {
	f.nextMsgID++
	msg.ID = f.nextMsgID
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) IsParticipant(chatID int64, userID string) (bool, error) {
	return f.participants[chatID][userID], nil
}

type recordingDispatcher struct {
	calls []dispatchCall
}

type dispatchCall struct {
	conversationID int64
	event          model.ServerEvent
}

func (d *recordingDispatcher) Dispatch(conversationID int64, event model.ServerEvent) {
	d.calls = append(d.calls, dispatchCall{conversationID: conversationID, event: event})
}

func newTestService(t *testing.T) (*Service, *fakeStore, *recordingDispatcher) {
	t.Helper()
	store := newFakeStore()
	dispatcher := &recordingDispatcher{}
	logger := zerolog.Nop()
	svc := NewService(Config{Store: store, Dispatcher: dispatcher, Logger: &logger})
	return svc, store, dispatcher
}

func TestService_SendMessage_DispatchesAfterPersist(t *testing.T) {
	svc, store, dispatcher := newTestService(t)
	chat, err := store.CreateChat(model.Chat{IsGroup: true, Name: "plans"}, []string{"alice", "bob"})
	require.NoError(t, err)

	msg, err := svc.SendMessage(chat.ID, "alice", "hi", "")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, chat.ID, dispatcher.calls[0].conversationID)
	event, ok := dispatcher.calls[0].event.(model.NewMessageEvent)
	require.True(t, ok)
	assert.Equal(t, model.EventTypeNewMessage, event.Type)
	assert.Equal(t, msg.ID, event.Message.ID, "dispatched message carries the persisted id")
	assert.Equal(t, "hi", event.Message.Content)
}

func TestService_SendMessage_NonParticipantDenied(t *testing.T) {
	svc, store, dispatcher := newTestService(t)
	chat, err := store.CreateChat(model.Chat{IsGroup: true}, []string{"alice", "bob"})
	require.NoError(t, err)

	_, err = svc.SendMessage(chat.ID, "mallory", "hi", "")
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Empty(t, dispatcher.calls, "denied sends must not dispatch")
	assert.Empty(t, store.messages, "denied sends must not persist")
}

func TestService_ChatMessages_Authorized(t *testing.T) {
	svc, store, _ := newTestService(t)
	chat, err := store.CreateChat(model.Chat{IsGroup: false}, []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = svc.SendMessage(chat.ID, "alice", "hi", "")
	require.NoError(t, err)

	messages, err := svc.ChatMessages(chat.ID, "bob")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	_, err = svc.ChatMessages(chat.ID, "mallory")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestService_CreateGroupChat_IncludesCreator(t *testing.T) {
	svc, store, _ := newTestService(t)

	chat, err := svc.CreateGroupChat("alice", "plans", []string{"bob", "carol", "alice"})
	require.NoError(t, err)

	members := store.participants[chat.ID]
	require.Len(t, members, 3)
	assert.True(t, members["alice"])
	assert.True(t, members["bob"])
	assert.True(t, members["carol"])
}
