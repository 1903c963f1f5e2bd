package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-broker/internal/broker"
	"chat-broker/internal/mocks"
	"chat-broker/internal/models"
)

var _ BrokerService = (*mocks.BrokerServiceMock)(nil)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/session/:participant_id/messages", handler.PostMessage)
	r.GET("/history", handler.GetHistory)
	r.DELETE("/history", handler.ClearHistory)
	return r
}

func TestPostMessageAccepted(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	accepted := models.Message{ID: "m1", SenderID: "p1", Content: "hello", Channel: models.ChannelGlobal}
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderID == "p1" && m.Content == "hello" && m.Channel == models.ChannelGlobal
	})).Return(accepted, nil).Once()

	body := bytes.NewBufferString(`{"content":"hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/p1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "m1", resp.ID)
	svc.AssertExpectations(t)
}

func TestPostMessageDefaultsSenderNameToParticipant(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	svc.On("Submit", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.SenderName == "p1"
	})).Return(models.Message{ID: "m1"}, nil).Once()

	body := bytes.NewBufferString(`{"content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/p1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestPostMessageRejected(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	rej := &broker.Rejection{
		Reason:     "please wait 0.5 seconds before sending another message",
		RetryAfter: 500 * time.Millisecond,
	}
	svc.On("Submit", mock.Anything, mock.Anything).Return(models.Message{}, rej).Once()

	body := bytes.NewBufferString(`{"content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/p1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, rej.Reason, resp["error"])
	require.InDelta(t, 0.5, resp["retry_after_seconds"], 1e-9)
	svc.AssertExpectations(t)
}

func TestPostMessageSystemChannelForbidden(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	body := bytes.NewBufferString(`{"content":"hi","channel":"system"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/p1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	svc.AssertNotCalled(t, "Submit")
}

func TestPostMessageUnknownChannel(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	body := bytes.NewBufferString(`{"content":"hi","channel":"broadcast"}`)
	req := httptest.NewRequest(http.MethodPost, "/session/p1/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Submit")
}

func TestGetHistoryWithCount(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	svc.On("Recent", 2).Return([]models.Message{{ID: "m1"}, {ID: "m2"}}).Once()

	req := httptest.NewRequest(http.MethodGet, "/history?count=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	svc.AssertExpectations(t)
}

func TestGetHistoryInvalidCount(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/history?count=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Recent")
}

func TestClearHistory(t *testing.T) {
	svc := new(mocks.BrokerServiceMock)
	handler := NewMessageHandler(svc, nil)
	router := setupMessageRouter(handler)

	svc.On("ClearHistory").Return().Once()

	req := httptest.NewRequest(http.MethodDelete, "/history", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}
