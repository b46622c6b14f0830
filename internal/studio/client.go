// Package studio implements the websocket control-channel client for the
// streaming studio. It is both the frame source (per-tick source
// screenshots) and the recording sink (record start/stop steered at the
// session's target path) consumed by the sampling loop.
package studio

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clipwatch/clipwatch/internal/config"
)

// ErrNotConnected is returned when an operation is attempted before
// Connect succeeds or after the connection drops.
var ErrNotConnected = errors.New("studio: not connected")

// Protocol opcodes for the studio's websocket control channel.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

const rpcVersion = 1

// Client talks to the studio over a single websocket connection. Requests
// are strictly request/response; a mutex serializes them since the
// sampling loop is the only caller apart from occasional status queries.
type Client struct {
	cfg config.StudioConfig
	log *log.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	reqSeq    int64
	sceneName string // cached program scene, used when no source is configured

	// ReadTimeout bounds each request round trip.
	ReadTimeout time.Duration
}

// NewClient creates a studio client for the configured endpoint.
func NewClient(cfg config.StudioConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:         cfg,
		log:         logger,
		ReadTimeout: 5 * time.Second,
	}
}

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	RPCVersion     int `json:"rpcVersion"`
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment"`
}

// Connect dials the control channel and completes the hello/identify
// handshake, authenticating when the studio demands it.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	url := fmt.Sprintf("ws://%s:%d", c.cfg.Host, c.cfg.Port)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("studio: dial %s: %w", url, err)
	}

	var hello helloData
	if err := readTyped(conn, c.ReadTimeout, opHello, &hello); err != nil {
		conn.Close()
		return fmt.Errorf("studio: hello: %w", err)
	}

	identify := map[string]any{"rpcVersion": rpcVersion}
	if hello.Authentication != nil {
		identify["authentication"] = authResponse(c.cfg.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := writeEnvelope(conn, opIdentify, identify); err != nil {
		conn.Close()
		return fmt.Errorf("studio: identify: %w", err)
	}

	var identified struct {
		NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
	}
	if err := readTyped(conn, c.ReadTimeout, opIdentified, &identified); err != nil {
		conn.Close()
		return fmt.Errorf("studio: identify rejected: %w", err)
	}

	c.conn = conn
	c.connected = true
	c.log.Printf("studio: connected to %s (rpc v%d)", url, identified.NegotiatedRPCVersion)
	return nil
}

// Disconnect closes the control channel. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// CurrentFrame fetches a screenshot of the watched source and decodes it.
// A request the studio declines (source hidden, scene switching) is an
// idle tick: (nil, nil). A transport failure is fatal and returned.
func (c *Client) CurrentFrame() (image.Image, error) {
	name, err := c.sourceName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, nil
	}

	resp, reqErr, err := c.request("GetSourceScreenshot", map[string]any{
		"sourceName":  name,
		"imageFormat": "png",
	})
	if err != nil {
		return nil, err
	}
	if reqErr != nil {
		// Declined request, not a dead connection.
		return nil, nil
	}

	var data struct {
		ImageData string `json:"imageData"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return nil, fmt.Errorf("studio: screenshot payload: %w", err)
	}

	img, err := decodeDataURI(data.ImageData)
	if err != nil {
		c.log.Printf("studio: undecodable screenshot: %v", err)
		return nil, nil
	}
	return img, nil
}

// StartRecording points the studio's record output at the clip's target
// path and starts recording.
func (c *Client) StartRecording(path string) error {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if _, reqErr, err := c.request("SetRecordDirectory", map[string]any{
		"recordDirectory": dir,
	}); err != nil {
		return err
	} else if reqErr != nil {
		return fmt.Errorf("studio: set record directory: %w", reqErr)
	}

	if _, reqErr, err := c.request("SetProfileParameter", map[string]any{
		"parameterCategory": "Output",
		"parameterName":     "FilenameFormatting",
		"parameterValue":    base,
	}); err != nil {
		return err
	} else if reqErr != nil {
		return fmt.Errorf("studio: set filename: %w", reqErr)
	}

	if _, reqErr, err := c.request("StartRecord", nil); err != nil {
		return err
	} else if reqErr != nil {
		return fmt.Errorf("studio: start record: %w", reqErr)
	}
	return nil
}

// StopRecording stops the studio's record output. The artifact is
// finalized by the studio shortly after this returns.
func (c *Client) StopRecording() error {
	if _, reqErr, err := c.request("StopRecord", nil); err != nil {
		return err
	} else if reqErr != nil {
		return fmt.Errorf("studio: stop record: %w", reqErr)
	}
	return nil
}

// Recording reports whether the studio's record output is active.
func (c *Client) Recording() (bool, error) {
	resp, reqErr, err := c.request("GetRecordStatus", nil)
	if err != nil {
		return false, err
	}
	if reqErr != nil {
		return false, reqErr
	}
	var data struct {
		OutputActive bool `json:"outputActive"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return false, err
	}
	return data.OutputActive, nil
}

// sourceName returns the configured source, falling back to the current
// program scene (cached after first lookup).
func (c *Client) sourceName() (string, error) {
	if c.cfg.Source != "" {
		return c.cfg.Source, nil
	}

	c.mu.Lock()
	cached := c.sceneName
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	resp, reqErr, err := c.request("GetCurrentProgramScene", nil)
	if err != nil {
		return "", err
	}
	if reqErr != nil {
		return "", nil
	}
	var data struct {
		SceneName string `json:"sceneName"`
	}
	if err := json.Unmarshal(resp, &data); err != nil {
		return "", nil
	}

	c.mu.Lock()
	c.sceneName = data.SceneName
	c.mu.Unlock()
	return data.SceneName, nil
}

// request performs one request/response round trip. The first error return
// covers request-level rejection (recoverable); the second covers
// transport failure (fatal).
func (c *Client) request(reqType string, data any) (json.RawMessage, error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil, nil, ErrNotConnected
	}

	c.reqSeq++
	reqID := fmt.Sprintf("cw-%d", c.reqSeq)

	payload := map[string]any{
		"requestType": reqType,
		"requestId":   reqID,
	}
	if data != nil {
		payload["requestData"] = data
	}

	if err := writeEnvelope(c.conn, opRequest, payload); err != nil {
		c.dropLocked()
		return nil, nil, fmt.Errorf("studio: send %s: %w", reqType, err)
	}

	deadline := time.Now().Add(c.ReadTimeout)
	for {
		_ = c.conn.SetReadDeadline(deadline)
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			c.dropLocked()
			return nil, nil, fmt.Errorf("studio: read %s response: %w", reqType, err)
		}

		// Unsolicited events interleave with responses; skip them.
		if env.Op == opEvent {
			continue
		}
		if env.Op != opRequestResponse {
			continue
		}

		var resp struct {
			RequestType   string          `json:"requestType"`
			RequestID     string          `json:"requestId"`
			RequestStatus requestStatus   `json:"requestStatus"`
			ResponseData  json.RawMessage `json:"responseData"`
		}
		if err := json.Unmarshal(env.D, &resp); err != nil {
			c.dropLocked()
			return nil, nil, fmt.Errorf("studio: malformed response: %w", err)
		}
		if resp.RequestID != reqID {
			continue
		}

		if !resp.RequestStatus.Result {
			return nil, fmt.Errorf("%s failed (code %d): %s", reqType, resp.RequestStatus.Code, resp.RequestStatus.Comment), nil
		}
		return resp.ResponseData, nil, nil
	}
}

// dropLocked marks the connection dead after a transport error. Caller
// holds c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

// authResponse derives the challenge answer the studio expects:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	answer := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(answer[:])
}

// decodeDataURI parses a "data:image/png;base64,..." screenshot payload.
func decodeDataURI(uri string) (image.Image, error) {
	idx := strings.Index(uri, "base64,")
	if idx < 0 {
		return nil, errors.New("missing base64 marker")
	}
	raw, err := base64.StdEncoding.DecodeString(uri[idx+len("base64,"):])
	if err != nil {
		return nil, err
	}
	return png.Decode(bytes.NewReader(raw))
}

func writeEnvelope(conn *websocket.Conn, op int, d any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	return conn.WriteJSON(map[string]any{"op": op, "d": d})
}

// readTyped reads envelopes until one with the wanted opcode arrives,
// decoding its payload into dst.
func readTyped(conn *websocket.Conn, timeout time.Duration, op int, dst any) error {
	deadline := time.Now().Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		if env.Op != op {
			continue
		}
		return json.Unmarshal(env.D, dst)
	}
}
