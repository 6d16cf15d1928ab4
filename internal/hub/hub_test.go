package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/domain"
	"github.com/Megatron-XCoder/simple-collaborative-whiteboard/internal/registry"
)

// fakeReplayer 内存版历史存储，加入时返回预置的回放序列。
type fakeReplayer struct {
	mu     sync.Mutex
	events map[string][]domain.DrawEvent
}

func newFakeReplayer() *fakeReplayer {
	return &fakeReplayer{events: make(map[string][]domain.DrawEvent)}
}

func (f *fakeReplayer) EnsureRoom(_ context.Context, roomID string) (*domain.Room, error) {
	now := time.Now().UTC()
	return &domain.Room{RoomID: roomID, CreatedAt: now, LastActivity: now}, nil
}

func (f *fakeReplayer) Replay(_ context.Context, roomID string) ([]domain.DrawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[roomID], nil
}

// fakePersister 记录被入队的持久化请求。
type fakePersister struct {
	mu       sync.Mutex
	appended []appendedEvent
}

type appendedEvent struct {
	roomID  string
	kind    string
	payload string
}

func (f *fakePersister) EnqueueAppend(roomID, kind string, payload json.RawMessage, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, appendedEvent{roomID: roomID, kind: kind, payload: string(payload)})
	return nil
}

func (f *fakePersister) snapshot() []appendedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appendedEvent(nil), f.appended...)
}

func startHub(t *testing.T) (*Hub, *fakeReplayer, *fakePersister) {
	t.Helper()
	replayer := newFakeReplayer()
	persister := &fakePersister{}
	h := NewHub(registry.New(), replayer, persister)
	go h.Run()
	t.Cleanup(h.Stop)
	return h, replayer, persister
}

func connect(t *testing.T, h *Hub, sessionID string) *Client {
	t.Helper()
	c := NewClient(h, nil, sessionID)
	require.True(t, h.Register(c))
	return c
}

func recvEnvelope(t *testing.T, c *Client) *Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed while waiting for message")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return &env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message to %s", c.SessionID())
		return nil
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected message to %s: %s", c.SessionID(), raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func sendEvent(t *testing.T, h *Hub, c *Client, event string, data interface{}) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		require.NoError(t, err)
		raw = encoded
	}
	require.True(t, h.queue(hubMessage{kind: "event", client: c, envelope: &Envelope{Event: event, Data: raw}}))
}

// join 执行加入并消费加入者收到的 user-count 和 room-data (顺序不定)。
// 返回 user-count 的值和 room-data 的历史长度。
func join(t *testing.T, h *Hub, c *Client, roomID string) (count int, historyLen int) {
	t.Helper()
	sendEvent(t, h, c, EventJoinRoom, roomID)

	gotCount, gotData := false, false
	for i := 0; i < 2; i++ {
		env := recvEnvelope(t, c)
		switch env.Event {
		case EventUserCount:
			require.NoError(t, json.Unmarshal(env.Data, &count))
			gotCount = true
		case EventRoomData:
			var history []domain.WireEvent
			require.NoError(t, json.Unmarshal(env.Data, &history))
			historyLen = len(history)
			gotData = true
		default:
			t.Fatalf("unexpected event during join: %s", env.Event)
		}
	}
	require.True(t, gotCount, "joiner did not receive user-count")
	require.True(t, gotData, "joiner did not receive room-data")
	return count, historyLen
}

func expectUserCount(t *testing.T, c *Client, want int) {
	t.Helper()
	env := recvEnvelope(t, c)
	require.Equal(t, EventUserCount, env.Event)
	var count int
	require.NoError(t, json.Unmarshal(env.Data, &count))
	assert.Equal(t, want, count)
}

func TestHub_JoinDeliversSnapshotAndCount(t *testing.T) {
	h, replayer, _ := startHub(t)

	stored := domain.DrawEvent{Kind: domain.EventKindStroke, Timestamp: time.Now().UTC()}
	require.NoError(t, stored.SetStrokePayload(domain.StrokePayload{
		Path: []domain.Point{{X: 1, Y: 2}}, Color: "#000", StrokeWidth: 2,
	}))
	replayer.events["ABC123"] = []domain.DrawEvent{stored}

	c1 := connect(t, h, "s1")
	count, historyLen := join(t, h, c1, "ABC123")

	assert.Equal(t, 1, count)
	assert.Equal(t, 1, historyLen)
}

func TestHub_SecondJoinBroadcastsCountToBoth(t *testing.T) {
	h, _, _ := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")

	count, _ := join(t, h, c1, "ABC123")
	require.Equal(t, 1, count)

	count, _ = join(t, h, c2, "ABC123")
	assert.Equal(t, 2, count)
	expectUserCount(t, c1, 2)
}

func TestHub_DrawEndRelayedAndPersisted(t *testing.T) {
	h, _, persister := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	stroke := map[string]interface{}{
		"path":        []map[string]float64{{"x": 0, "y": 0}, {"x": 1, "y": 1}},
		"color":       "#000",
		"strokeWidth": 3,
	}
	sendEvent(t, h, c1, EventDrawEnd, stroke)

	// S2 收到原样转发的 draw-end
	env := recvEnvelope(t, c2)
	require.Equal(t, EventDrawEnd, env.Event)
	var relayed domain.StrokePayload
	require.NoError(t, json.Unmarshal(env.Data, &relayed))
	assert.Equal(t, []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, relayed.Path)
	assert.Equal(t, "#000", relayed.Color)
	assert.Equal(t, float64(3), relayed.StrokeWidth)

	// 发送者自己不收转发
	assertNoMessage(t, c1)

	// 持久化最终被入队，payload 原样
	require.Eventually(t, func() bool {
		return len(persister.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	appended := persister.snapshot()[0]
	assert.Equal(t, "ABC123", appended.roomID)
	assert.Equal(t, domain.EventKindStroke, appended.kind)
	var persisted domain.StrokePayload
	require.NoError(t, json.Unmarshal([]byte(appended.payload), &persisted))
	assert.Equal(t, relayed, persisted)
}

func TestHub_DrawStartNotPersisted(t *testing.T) {
	h, _, persister := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	sendEvent(t, h, c1, EventDrawStart, map[string]interface{}{"color": "#000", "strokeWidth": 3})

	env := recvEnvelope(t, c2)
	assert.Equal(t, EventDrawStart, env.Event)
	// 进行中的笔画是临时的，不进历史
	assertNoMessage(t, c1)
	assert.Empty(t, persister.snapshot())
}

func TestHub_ClearCanvasReachesSenderAndPersists(t *testing.T) {
	h, _, persister := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	sendEvent(t, h, c1, EventClearCanvas, nil)

	assert.Equal(t, EventClearCanvas, recvEnvelope(t, c1).Event)
	assert.Equal(t, EventClearCanvas, recvEnvelope(t, c2).Event)

	require.Eventually(t, func() bool {
		return len(persister.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	appended := persister.snapshot()[0]
	assert.Equal(t, domain.EventKindClear, appended.kind)
	assert.JSONEq(t, "{}", appended.payload)
}

func TestHub_CursorMoveRelaysAssignedColor(t *testing.T) {
	h, _, _ := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	sendEvent(t, h, c1, EventCursorMove, CursorMovePayload{X: 10, Y: 20})

	env := recvEnvelope(t, c2)
	require.Equal(t, EventCursorUpdate, env.Event)
	var update CursorUpdatePayload
	require.NoError(t, json.Unmarshal(env.Data, &update))
	assert.Equal(t, "s1", update.SessionID)
	assert.Equal(t, registry.CursorPalette[0], update.Color) // 首个加入者拿槽位 0 的颜色
	assert.Equal(t, float64(10), update.X)
	assert.Equal(t, float64(20), update.Y)
	assertNoMessage(t, c1)
}

func TestHub_FifthJoinRejected(t *testing.T) {
	h, _, _ := startHub(t)

	members := make([]*Client, 0, 4)
	for i := 1; i <= 4; i++ {
		c := connect(t, h, fmt.Sprintf("s%d", i))
		join(t, h, c, "FULL01")
		members = append(members, c)
	}
	// 清掉已有成员积压的 user-count 广播
	for i, c := range members {
		for j := i + 2; j <= 4; j++ {
			expectUserCount(t, c, j)
		}
	}

	fifth := connect(t, h, "s5")
	sendEvent(t, h, fifth, EventJoinRoom, "FULL01")

	env := recvEnvelope(t, fifth)
	require.Equal(t, EventError, env.Event)
	var message string
	require.NoError(t, json.Unmarshal(env.Data, &message))
	assert.Equal(t, ErrRoomFullMessage, message)

	// 成员数不变，在场成员也没有收到新的 user-count
	assert.Equal(t, 4, h.Registry().MemberCount("FULL01"))
	for _, c := range members {
		assertNoMessage(t, c)
	}
}

func TestHub_MalformedRoomIDRejectedBeforeRegistry(t *testing.T) {
	h, _, _ := startHub(t)
	c := connect(t, h, "s1")

	sendEvent(t, h, c, EventJoinRoom, "abc") // 长度不足

	env := recvEnvelope(t, c)
	require.Equal(t, EventError, env.Event)
	var message string
	require.NoError(t, json.Unmarshal(env.Data, &message))
	assert.Equal(t, ErrInvalidRoomIDMessage, message)
	assert.Equal(t, 0, h.Registry().MemberCount("ABC"))
}

func TestHub_UnjoinedEventsDroppedSilently(t *testing.T) {
	h, _, persister := startHub(t)
	c1 := connect(t, h, "s1")
	join(t, h, c1, "ABC123")
	unjoined := connect(t, h, "s2")

	sendEvent(t, h, unjoined, EventCursorMove, CursorMovePayload{X: 1, Y: 1})
	sendEvent(t, h, unjoined, EventDrawEnd, map[string]string{"color": "#000"})
	sendEvent(t, h, unjoined, EventClearCanvas, nil)
	sendEvent(t, h, unjoined, EventLeaveRoom, nil)

	// 既没有转发也没有错误，也没有任何持久化
	assertNoMessage(t, c1)
	assertNoMessage(t, unjoined)
	assert.Empty(t, persister.snapshot())
}

func TestHub_DisconnectBroadcastsCountAndKeepsRoom(t *testing.T) {
	h, _, _ := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	require.True(t, h.queue(hubMessage{kind: "unregister", client: c1}))

	// 留下的成员收到新人数，房间条目仍然存在
	expectUserCount(t, c2, 1)
	assert.Equal(t, 1, h.Registry().MemberCount("ABC123"))
}

func TestHub_SwitchRoomLeavesPreviousFirst(t *testing.T) {
	h, _, _ := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ROOMA1")
	join(t, h, c2, "ROOMA1")
	expectUserCount(t, c1, 2)

	// c1 切换房间：旧房间的留守成员收到人数下降
	count, _ := join(t, h, c1, "ROOMB1")
	assert.Equal(t, 1, count)
	expectUserCount(t, c2, 1)

	assert.Equal(t, 1, h.Registry().MemberCount("ROOMA1"))
	assert.Equal(t, 1, h.Registry().MemberCount("ROOMB1"))
}

func TestHub_LastLeaveDiscardsRoomAndResetsColors(t *testing.T) {
	h, _, _ := startHub(t)
	c1 := connect(t, h, "s1")
	c2 := connect(t, h, "s2")
	join(t, h, c1, "ABC123")
	join(t, h, c2, "ABC123")
	expectUserCount(t, c1, 2)

	sendEvent(t, h, c1, EventLeaveRoom, nil)
	// 离开者已不在成员集中，人数广播只到达留下的成员
	expectUserCount(t, c2, 1)
	assertNoMessage(t, c1)

	sendEvent(t, h, c2, EventLeaveRoom, nil)
	assertNoMessage(t, c2)
	assert.Equal(t, 0, h.Registry().MemberCount("ABC123"))

	// 房间条目已被丢弃：新加入者重新从槽位 0 拿颜色
	c3 := connect(t, h, "s3")
	count, _ := join(t, h, c3, "ABC123")
	require.Equal(t, 1, count)
	c4 := connect(t, h, "s4")
	join(t, h, c4, "ABC123")
	expectUserCount(t, c3, 2)

	sendEvent(t, h, c3, EventCursorMove, CursorMovePayload{X: 0, Y: 0})
	env := recvEnvelope(t, c4)
	require.Equal(t, EventCursorUpdate, env.Event)
	var update CursorUpdatePayload
	require.NoError(t, json.Unmarshal(env.Data, &update))
	assert.Equal(t, registry.CursorPalette[0], update.Color)
}
