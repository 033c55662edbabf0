package e2e

import (
	"circle-hub/auth"
	"circle-hub/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseHubSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHubSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HubAddr == "" {
		s.T().Skip("HUB_ADDR is not set, skipping end to end scenarios")
	}
}

func (s *BaseHubSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Client is a websocket session of one user, logging every frame it exchanges.
type Client struct {
	t      *testing.T
	userID string
	ws     *websocket.Conn
	debug  bool
	colour bool
}

type Frame struct {
	Event   event.Name      `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dial opens a session for userID with a freshly minted token.
func (s *BaseHubSuite) Dial(name, userID string) *Client {
	t := s.T()
	s.header(t, name)

	token, err := auth.NewJWTVerifier(s.Config.JWTSecret).GenerateToken(userID, nil, time.Hour)
	s.Require().NoError(err)

	u := url.URL{Scheme: "ws", Host: s.Config.HubAddr, Path: "/ws", RawQuery: url.Values{"userId": {userID}}.Encode()}
	ws, resp, err := websocket.DefaultDialer.Dial(u.String(), http.Header{"Authorization": {"Bearer " + token}})
	s.Require().NoError(err, "Failed to connect to hub at "+s.Config.HubAddr)
	s.Require().Equal(http.StatusSwitchingProtocols, resp.StatusCode)

	c := &Client{t: t, userID: userID, ws: ws, debug: s.Config.DebugJSON, colour: s.Config.Colours}
	t.Cleanup(c.Close)
	return c
}

func (c *Client) Send(name event.Name, payload any) {
	frame := map[string]any{"event": name, "payload": payload}
	c.log("->", name, frame)
	if err := c.ws.WriteJSON(frame); err != nil {
		c.t.Fatalf("%s failed to send %s: %v", c.userID, name, err)
	}
}

// Expect reads frames until one named name arrives and decodes its payload into v.
func (c *Client) Expect(name event.Name, v any) {
	c.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = c.ws.SetReadDeadline(deadline)
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			c.t.Fatalf("%s never received %s: %v", c.userID, name, err)
		}
		c.log("<-", f.Event, f)
		if f.Event != name {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(f.Payload, v); err != nil {
				c.t.Fatalf("%s received an unreadable %s: %v", c.userID, name, err)
			}
		}
		return
	}
}

func (c *Client) Close() {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.ws.Close()
}

func (c *Client) log(direction string, name event.Name, frame any) {
	line := fmt.Sprintf("%s %s %s", c.userID, direction, name)
	if c.colour {
		line = color.FgCyan.Render(line)
	}
	if c.debug {
		body, _ := json.MarshalIndent(frame, "", "  ")
		line += "\n" + string(body)
	}
	c.t.Log(line)
}

// WithHealth provides a gRPC health client within a contextual test step
func (s *BaseHubSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.HealthAddr == "" {
		s.T().Skip("HEALTH_ADDR is not set")
	}
	s.header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.HealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to health server at "+s.Config.HealthAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
