package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"frauddet/backend/services/prediction-stream/internal/generator"
	"frauddet/backend/services/prediction-stream/internal/models"
	"frauddet/backend/services/prediction-stream/internal/predict"
	"frauddet/backend/services/prediction-stream/internal/random"
	"frauddet/backend/services/prediction-stream/internal/scorer"
)

type streamMessage struct {
	Message     string              `json:"message"`
	Error       string              `json:"error"`
	Predictions *models.Predictions `json:"predictions"`
	Transaction json.RawMessage     `json:"transaction"`
}

func newTestServer(t *testing.T, interval time.Duration) (*httptest.Server, *Manager) {
	t.Helper()
	src := random.New(1)
	processor := predict.NewProcessor(generator.New(src), scorer.New(src), nil, zap.NewNop())
	manager := NewManager(time.Hour, zap.NewNop())
	server := NewServer(manager, processor, Options{Interval: interval, WriteTimeout: time.Second, PongWait: time.Minute}, zap.NewNop())

	ts := httptest.NewServer(httpHandler(server))
	t.Cleanup(ts.Close)
	return ts, manager
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg), string(data))
	return msg
}

func onlySession(t *testing.T, manager *Manager) *Session {
	t.Helper()
	require.Eventually(t, func() bool { return manager.Count() == 1 }, 2*time.Second, 5*time.Millisecond)
	sessions := manager.snapshot()
	return sessions[0]
}

func TestStreamPeriodicPredictions(t *testing.T) {
	ts, manager := newTestServer(t, 10*time.Millisecond)
	conn := dial(t, ts)

	assert.Equal(t, predict.ConnectedText, readMessage(t, conn).Message)

	for i := 0; i < 3; i++ {
		msg := readMessage(t, conn)
		require.NotNil(t, msg.Predictions)
		var tx models.Transaction
		require.NoError(t, json.Unmarshal(msg.Transaction, &tx))
		assert.Regexp(t, `^tx-\d{5}$`, tx.ID)
		assert.LessOrEqual(t, msg.Predictions.FraudScore, 0.99)
	}

	session := onlySession(t, manager)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close")
	}

	emitted := session.Emitted()
	assert.GreaterOrEqual(t, emitted, uint64(3))
	assert.Equal(t, websocket.CloseNormalClosure, session.CloseCode())
	assert.Equal(t, StateClosed, session.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, emitted, session.Emitted())
	assert.Zero(t, manager.Count())
}

func TestStreamRequestResponses(t *testing.T) {
	ts, _ := newTestServer(t, time.Hour)
	conn := dial(t, ts)
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"transaction": {"V1": -10, "V3": -10, "Amount": 2000}}`)))
	msg := readMessage(t, conn)
	require.NotNil(t, msg.Predictions)
	assert.Equal(t, 1, msg.Predictions.XGBoost)
	assert.GreaterOrEqual(t, msg.Predictions.FraudScore, 0.7)
	assert.JSONEq(t, `{"V1": -10, "V3": -10, "Amount": 2000}`, string(msg.Transaction))

	// Ignored frames produce no reply, so the next reply belongs to the empty transaction.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"not_transaction": 1}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"transaction": {}}`)))
	msg = readMessage(t, conn)
	require.NotNil(t, msg.Predictions)
	assert.Equal(t, models.Predictions{FraudScore: msg.Predictions.FraudScore}, *msg.Predictions)
	assert.LessOrEqual(t, msg.Predictions.FraudScore, 0.3)
	assert.JSONEq(t, `{}`, string(msg.Transaction))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`)))
	msg = readMessage(t, conn)
	assert.Contains(t, msg.Error, "malformed input")

	// Still open after the error.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"transaction": {"Amount": 1}}`)))
	msg = readMessage(t, conn)
	require.NotNil(t, msg.Predictions)
}

func TestStreamAdvertisesSessionID(t *testing.T) {
	ts, manager := newTestServer(t, time.Hour)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	id := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, id)
	assert.Equal(t, onlySession(t, manager).ID(), id)
	assert.Equal(t, predict.ConnectedText, readMessage(t, conn).Message)
}

func TestStreamRejectsInvalidUTF8(t *testing.T) {
	ts, _ := newTestServer(t, time.Hour)
	conn := dial(t, ts)
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{\"transaction\": {\"transaction_id\": \"\xff\xfe\"}}")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	require.True(t, utf8.Valid(data), string(data))

	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Contains(t, msg.Error, "not valid UTF-8")
	assert.Nil(t, msg.Predictions)
}

func TestStreamMessagesNeverInterleave(t *testing.T) {
	ts, _ := newTestServer(t, time.Millisecond)
	conn := dial(t, ts)
	readMessage(t, conn)

	const requests = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < requests; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"transaction": {"transaction_id": "client", "Amount": 1500}}`)); err != nil {
				return
			}
		}
	}()

	answered := 0
	periodic := 0
	for answered < requests || periodic == 0 {
		msg := readMessage(t, conn)
		require.NotNil(t, msg.Predictions)
		if strings.Contains(string(msg.Transaction), `"client"`) {
			answered++
		} else {
			periodic++
		}
	}
	wg.Wait()
	assert.Positive(t, periodic)
}

func TestManagerShutdownClosesSessions(t *testing.T) {
	ts, manager := newTestServer(t, 10*time.Millisecond)
	conn := dial(t, ts)
	readMessage(t, conn)
	session := onlySession(t, manager)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
				return
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	manager.Shutdown(ctx)

	<-done
	assert.Equal(t, StateClosed, session.State())
	assert.Zero(t, manager.Count())
	assert.ErrorIs(t, manager.Add(NewSession("late", newFakeConn(), &fakeProcessor{}, Options{}, zap.NewNop(), nil)), ErrManagerClosed)
}

func httpHandler(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.HandleWS)
	return mux
}
