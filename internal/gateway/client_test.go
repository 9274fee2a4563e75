package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupflow/distributor/internal/config"
	"groupflow/distributor/internal/metrics"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPClient(config.GatewayConfig{
		BaseURL:       srv.URL,
		APIKey:        "secret",
		Timeout:       time.Second,
		ReadTimeout:   time.Second,
		CreateTimeout: time.Second,
	}, metrics.New(prometheus.NewRegistry()))
}

func TestHTTPClient_CreateGroup(t *testing.T) {
	var got createGroupBody
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/group/create/main", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "120363@g.us"})
	})

	id, err := client.CreateGroup(context.Background(), "main", CreateGroupRequest{
		Name:         "Group 2",
		Description:  "welcome",
		Participants: []string{"5511999990000", "5511911112222"},
		AdminPhone:   "5511999990000",
	})
	require.NoError(t, err)
	assert.Equal(t, "120363@g.us", id)
	assert.Equal(t, "Group 2", got.Subject)
	assert.Equal(t, []string{"5511999990000", "5511911112222"}, got.Participants)
}

func TestHTTPClient_CreateGroup_RequiresAdminPhone(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CreateGroup(context.Background(), "main", CreateGroupRequest{Name: "Group 1"})
	assert.ErrorIs(t, err, ErrAdminPhoneRequired)
	assert.False(t, called)
}

func TestHTTPClient_GetGroupInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/group/findGroupInfos/main", r.URL.Path)
		assert.Equal(t, "120363@g.us", r.URL.Query().Get("groupJid"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "120363@g.us",
			"subject": "Group 1",
			"participants": []map[string]string{
				{"id": "a@s.whatsapp.net", "admin": "superadmin"},
				{"id": "b@s.whatsapp.net"},
				{"id": "c@s.whatsapp.net"},
			},
		})
	})

	info, err := client.GetGroupInfo(context.Background(), "main", "120363@g.us")
	require.NoError(t, err)
	assert.Equal(t, 3, info.ParticipantCount)
	assert.Len(t, info.Participants, 3)
}

func TestHTTPClient_GetInviteLink(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"inviteCode": "AbCdEf"})
	})

	link, err := client.GetInviteLink(context.Background(), "main", "120363@g.us")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.whatsapp.com/AbCdEf", link)
}

func TestHTTPClient_UpdateAdminOnlySetting(t *testing.T) {
	var body map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/group/updateSetting/main", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.UpdateAdminOnlySetting(context.Background(), "main", "g@g.us", true))
	assert.Equal(t, "announcement", body["action"])
}

func TestHTTPClient_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("instance offline"))
	})

	err := client.UpdateSubject(context.Background(), "main", "g@g.us", "Group 3")
	var gwErr *Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadGateway, gwErr.StatusCode)
	assert.Equal(t, "instance offline", gwErr.Body)
	assert.True(t, IsRetryable(err))
}

func TestHTTPClient_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := client.GetGroupInfo(context.Background(), "main", "g@g.us")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestHTTPClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.timeouts.Read = 50 * time.Millisecond

	start := time.Now()
	_, err := client.GetGroupInfo(context.Background(), "main", "g@g.us")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
