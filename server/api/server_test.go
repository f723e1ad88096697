package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dsemenov/converse/auth"
	"github.com/dsemenov/converse/model"
	"github.com/dsemenov/converse/service"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	sent        []model.Message
	sendErr     error
	messagesErr error
}

func (s *stubChatService) SendMessage(chatID int64, senderID, content, messageType string) (model.Message, error) {
	if s.sendErr != nil {
		return model.Message{}, s.sendErr
	}
	msg := model.Message{ID: int64(len(s.sent) + 1), ChatID: chatID, SenderID: senderID, Content: content, MessageType: messageType}
	s.sent = append(s.sent, msg)
	return msg, nil
}

func (s *stubChatService) ChatMessages(chatID int64, userID string) ([]model.Message, error) {
	if s.messagesErr != nil {
		return nil, s.messagesErr
	}
	return s.sent, nil
}

func (s *stubChatService) UserChats(string) ([]model.ChatWithParticipants, error) {
	return []model.ChatWithParticipants{}, nil
}

func (s *stubChatService) CreateDirectChat(userID, otherUserID string) (model.ChatWithParticipants, error) {
	return model.ChatWithParticipants{Chat: model.Chat{ID: 1}}, nil
}

func (s *stubChatService) CreateGroupChat(userID, name string, participantIDs []string) (model.ChatWithParticipants, error) {
	return model.ChatWithParticipants{Chat: model.Chat{ID: 2, Name: name, IsGroup: true}}, nil
}

func (s *stubChatService) User(id string) (model.User, error) {
	return model.User{ID: id}, nil
}

func (s *stubChatService) UpsertUser(user model.User) (model.User, error) {
	return user, nil
}

func (s *stubChatService) Users(string) ([]model.User, error) {
	return []model.User{}, nil
}

func newTestServer(t *testing.T, svc ChatService) (*httptest.Server, *auth.Authenticator) {
	t.Helper()
	logger := zerolog.Nop()
	tokens := auth.New("test-secret", time.Hour)
	srv := NewServer(Config{
		Logger:        &logger,
		ChatService:   svc,
		Authenticator: tokens,
		ListenAddr:    ":0",
	})
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	return ts, tokens
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestLogin(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/auth/login", "",
		`{"userId":"alice","email":"alice@example.com"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "alice", out.User.ID)

	userID, err := tokens.ValidateToken(out.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestLogin_MissingUserID(t *testing.T) {
	ts, _ := newTestServer(t, &stubChatService{})
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/auth/login", "", `{"email":"x@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/chats", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/chats", "not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := tokens.IssueToken("alice")
	require.NoError(t, err)
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/chats", token, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendMessage(t *testing.T) {
	svc := &stubChatService{}
	ts, tokens := newTestServer(t, svc)
	token, err := tokens.IssueToken("alice")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/chats/42/messages", token, `{"content":"hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var msg model.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "hi", msg.Content)
	require.Len(t, svc.sent, 1)
}

func TestSendMessage_EmptyContent(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{})
	token, err := tokens.IssueToken("alice")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/chats/42/messages", token, `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_AccessDenied(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{sendErr: service.ErrAccessDenied})
	token, err := tokens.IssueToken("mallory")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/chats/42/messages", token, `{"content":"hi"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendMessage_BadChatID(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{})
	token, err := tokens.IssueToken("alice")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/chats/forty-two/messages", token, `{"content":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateGroupChat_Validation(t *testing.T) {
	ts, tokens := newTestServer(t, &stubChatService{})
	token, err := tokens.IssueToken("alice")
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/chats/group", token, `{"name":"plans"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/chats/group", token,
		`{"name":"plans","participantIds":["bob"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
