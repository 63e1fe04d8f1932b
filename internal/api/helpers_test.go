package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/edgelink-core/internal/audit"
	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/component"
	"github.com/nerrad567/edgelink-core/internal/edge"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/config"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/database"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/edgelink-core/migrations"
)

const (
	testSecret   = "test-secret-key-at-least-32-chars!"
	testDeviceID = "fems"
	testEdgeID   = "edge0"
	readTimeout  = 2 * time.Second
)

// testUsers are created in this order, so a password-only login with
// "p1" matches owner.
var testUsers = []struct {
	username, password string
	role               auth.Role
	edgeID             string
}{
	{"owner", "p1", auth.RoleOwner, ""},
	{"installer", "installer-pw", auth.RoleInstaller, ""},
	{"guest", "guest-pw", auth.RoleGuest, ""},
	{"edge0", "edge-pw", auth.RoleOwner, testEdgeID},
}

// recordingTimedata captures WriteTimestampedData calls.
type recordingTimedata struct {
	mu     sync.Mutex
	writes []map[string]map[string]any
	edges  []string
}

func (r *recordingTimedata) WriteTimestampedData(edgeID string, data map[string]map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, edgeID)
	r.writes = append(r.writes, data)
	return nil
}

func (r *recordingTimedata) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// recordingCommands captures power commands published to drivers.
type recordingCommands struct {
	mu      sync.Mutex
	topics  []string
	payload [][]byte
}

func (r *recordingCommands) PublishCommand(topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.payload = append(r.payload, payload)
	return nil
}

func (r *recordingCommands) last() (string, map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.topics) == 0 {
		return "", nil
	}
	var cmd map[string]any
	_ = json.Unmarshal(r.payload[len(r.payload)-1], &cmd) //nolint:errcheck // asserted by callers
	return r.topics[len(r.topics)-1], cmd
}

// testEnv is a server wired to real registries over a temp SQLite file.
type testEnv struct {
	srv        *Server
	http       *httptest.Server
	authn      *auth.Authenticator
	components *component.Registry
	feed       *component.MQTTFeed
	edges      *edge.Registry
	timedata   *recordingTimedata
	commands   *recordingCommands
	audit      *audit.SQLiteRepository
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(dir, "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	edgeRepo := edge.NewSQLiteRepository(db.DB)
	if err := edgeRepo.Create(ctx, testEdgeID, "Edge 0"); err != nil {
		t.Fatalf("creating edge: %v", err)
	}
	edges := edge.NewRegistry(edgeRepo)
	if err := edges.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	users := auth.NewUserRepository(db.DB)
	for _, u := range testUsers {
		hash, err := auth.HashPassword(u.password)
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
		if err := users.Create(ctx, &auth.User{
			Username:     u.username,
			PasswordHash: hash,
			Role:         u.role,
			EdgeID:       u.edgeID,
			IsActive:     true,
		}); err != nil {
			t.Fatalf("creating user %s: %v", u.username, err)
		}
	}
	authn := auth.NewAuthenticator(users, auth.NewMemoryStore(), testSecret, time.Hour)

	configPath := filepath.Join(dir, "components.yaml")
	components := component.NewRegistry(component.DefaultControllerFactory())
	if err := components.Load(component.DefaultDocument()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	components.SetStore(component.NewFileStore(configPath))
	meta, err := component.NewDevice(component.MetaID, component.ClassMeta, nil)
	if err != nil {
		t.Fatalf("NewDevice(_meta) error = %v", err)
	}
	if err := components.Add(meta); err != nil {
		t.Fatalf("Add(_meta) error = %v", err)
	}
	commands := &recordingCommands{}
	power, err := component.NewManualPQController("ess0", commands)
	if err != nil {
		t.Fatalf("NewManualPQController() error = %v", err)
	}
	if err := components.Add(power); err != nil {
		t.Fatalf("Add(_manualPQ) error = %v", err)
	}

	timedata := &recordingTimedata{}
	auditRepo := audit.NewSQLiteRepository(db.DB)

	srv, err := New(Deps{
		WS: config.WebSocketConfig{
			MaxMessageSize:       1 << 16,
			PingInterval:         30,
			PongTimeout:          10,
			SubscriptionInterval: 20,
			SendBuffer:           64,
		},
		Edge:       config.EdgeConfig{DefaultDeviceID: testDeviceID},
		Logger:     logging.Discard(),
		Auth:       authn,
		Components: components,
		Edges:      edges,
		Timedata:   timedata,
		Power:      power,
		Audit:      auditRepo,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	go srv.hub.Run(hubCtx)

	hs := httptest.NewServer(srv.buildRouter())
	t.Cleanup(func() {
		cancel()
		hs.Close()
	})

	return &testEnv{
		srv:        srv,
		http:       hs,
		authn:      authn,
		components: components,
		feed:       component.NewMQTTFeed(components),
		edges:      edges,
		timedata:   timedata,
		commands:   commands,
		audit:      auditRepo,
		configPath: configPath,
	}
}

// setChannel injects a measured value the way a device driver would.
func (e *testEnv) setChannel(t *testing.T, componentID, channelID, payload string) {
	t.Helper()
	if err := e.feed.HandleMessage(mqtt.Topics{}.ChannelState(componentID, channelID), []byte(payload)); err != nil {
		t.Fatalf("HandleMessage(%s/%s) error = %v", componentID, channelID, err)
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

// readFrame reads one JSON frame.
func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(readTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message %q: %v", data, err)
	}
	return msg
}

// readUntil skips frames until one carries key.
func readUntil(t *testing.T, ws *websocket.Conn, key string) map[string]any {
	t.Helper()
	for {
		msg := readFrame(t, ws)
		if _, ok := msg[key]; ok {
			return msg
		}
	}
}

// readNotification returns the next notification's severity and message.
func readNotification(t *testing.T, ws *websocket.Conn) (Severity, string) {
	t.Helper()
	msg := readUntil(t, ws, "notification")
	n, ok := msg["notification"].(map[string]any)
	if !ok {
		t.Fatalf("notification = %v", msg["notification"])
	}
	sev, _ := n["severity"].(string)    //nolint:errcheck // asserted by callers
	message, _ := n["message"].(string) //nolint:errcheck // asserted by callers
	return Severity(sev), message
}

// login authenticates ws and returns the authenticate block of the reply.
func login(t *testing.T, ws *websocket.Conn, creds map[string]any) map[string]any {
	t.Helper()
	sendJSON(t, ws, map[string]any{"authenticate": creds})
	reply := readUntil(t, ws, "authenticate")
	block, ok := reply["authenticate"].(map[string]any)
	if !ok {
		t.Fatalf("authenticate = %v", reply["authenticate"])
	}
	if block["failed"] == true {
		t.Fatalf("login with %v failed", creds)
	}
	return block
}

func loginAs(t *testing.T, ws *websocket.Conn, username string) {
	t.Helper()
	for _, u := range testUsers {
		if u.username == username {
			login(t, ws, map[string]any{"username": u.username, "password": u.password})
			return
		}
	}
	t.Fatalf("no test user %q", username)
}

func deviceRequestMsg(body map[string]any) map[string]any {
	return map[string]any{"devices": map[string]any{testDeviceID: body}}
}

func configMsg(ops ...map[string]any) map[string]any {
	list := make([]any, len(ops))
	for i, op := range ops {
		list[i] = op
	}
	return deviceRequestMsg(map[string]any{"config": list})
}

// expectClosed asserts the server closes ws rather than letting the read time out.
func expectClosed(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	//nolint:errcheck // Test deadline
	ws.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, data, err := ws.ReadMessage()
		if err == nil {
			// Frames queued before the close are allowed.
			if strings.Contains(string(data), "currentData") || strings.Contains(string(data), "notification") {
				continue
			}
			t.Fatalf("unexpected frame before close: %s", data)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("connection still open, want closed")
		}
		return
	}
}

// newTestConn creates a connection without a socket; frames are read from c.out.
func newTestConn(hub *Hub) *Conn {
	return newConn(hub, nil, 16, logging.Discard())
}

// nextFrame decodes the next queued JSON frame of c.
func nextFrame(t *testing.T, c *Conn) map[string]any {
	t.Helper()
	select {
	case f, ok := <-c.out:
		if !ok {
			t.Fatal("send buffer closed")
		}
		var msg map[string]any
		if err := json.Unmarshal(f.data, &msg); err != nil {
			t.Fatalf("decode frame %q: %v", f.data, err)
		}
		return msg
	case <-time.After(readTimeout):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// nextNotification decodes the next queued notification of c.
func nextNotification(t *testing.T, c *Conn) (Severity, string) {
	t.Helper()
	msg := nextFrame(t, c)
	n, ok := msg["notification"].(map[string]any)
	if !ok {
		t.Fatalf("frame %v is not a notification", msg)
	}
	sev, _ := n["severity"].(string)    //nolint:errcheck // asserted by callers
	message, _ := n["message"].(string) //nolint:errcheck // asserted by callers
	return Severity(sev), message
}

// expectNoFrame asserts nothing is queued on c.
func expectNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case f := <-c.out:
		t.Fatalf("unexpected frame %s", f.data)
	default:
	}
}
