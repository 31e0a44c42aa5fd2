package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/scratch-services/internal/auth"
	"github.com/avvvet/scratch-services/internal/comm"
)

func capture(t *testing.T) (*Ws, func() map[string]any) {
	t.Helper()
	var last []byte
	s := NewWs(func(topic string, payload []byte) error {
		assert.Equal(t, comm.SubjectSocketService, topic)
		last = payload
		return nil
	})
	return s, func() map[string]any {
		require.NotNil(t, last, "nothing forwarded")
		var m comm.WSMessage
		require.NoError(t, json.Unmarshal(last, &m))
		data := map[string]any{}
		require.NoError(t, json.Unmarshal(m.Data, &data))
		return data
	}
}

func TestSocketMessage_OverwritesHolderFields(t *testing.T) {
	s, forwarded := capture(t)
	s.StoreConnection("sock", nil, auth.Holder{ID: 42})

	err := s.SocketMessage("sock", &comm.WSMessage{
		Type: comm.TypeInit,
		Data: json.RawMessage(`{"user_id":7,"age_verified":true,"name":"Sara"}`),
	})
	require.NoError(t, err)

	data := forwarded()
	assert.Equal(t, float64(42), data["user_id"])
	assert.Equal(t, false, data["age_verified"])
	assert.Equal(t, "Sara", data["name"])
}

func TestSocketMessage_VerifiedHolder(t *testing.T) {
	s, forwarded := capture(t)
	s.StoreConnection("sock", nil, auth.Holder{ID: 42, AgeVerified: true})

	require.NoError(t, s.SocketMessage("sock", &comm.WSMessage{Type: comm.TypeGetBalance}))

	data := forwarded()
	assert.Equal(t, float64(42), data["user_id"])
	assert.Equal(t, true, data["age_verified"])
}

func TestSocketMessage_Rejects(t *testing.T) {
	s, _ := capture(t)
	s.StoreConnection("sock", nil, auth.Holder{ID: 42})

	err := s.SocketMessage("sock", &comm.WSMessage{Type: "credit-wallet"})
	assert.ErrorIs(t, err, ErrUnknownType)

	err = s.SocketMessage("other", &comm.WSMessage{Type: comm.TypeGetBalance})
	assert.Error(t, err)

	err = s.SocketMessage("sock", &comm.WSMessage{Type: comm.TypeInit, Data: json.RawMessage(`[1,2]`)})
	assert.Error(t, err)
}
