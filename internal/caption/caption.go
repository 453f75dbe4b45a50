package caption

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Captioner pushes the current utterance to the stream overlay.
// Display is fire-and-forget: overlay trouble must never stall speech.
type Captioner interface {
	Display(text string)
	Close()
}

// Nop is used when the overlay is disabled in config.
type Nop struct{}

func (Nop) Display(string) {}
func (Nop) Close()         {}

// OBS updates a text input on an OBS instance over the obs-websocket v5
// protocol. The connection is re-established lazily after any failure.
type OBS struct {
	url       string
	password  string
	inputName string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewOBS(host string, port int, password, inputName string) *OBS {
	return &OBS{
		url:       fmt.Sprintf("ws://%s:%d", host, port),
		password:  password,
		inputName: inputName,
	}
}

// obs-websocket v5 opcodes.
const (
	opHello      = 0
	opIdentify   = 1
	opIdentified = 2
	opRequest    = 6
)

type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	Authentication *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

func (o *OBS) Display(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.send(text); err != nil {
		log.Printf("[caption] display failed, reconnecting: %v", err)
		o.closeLocked()
		if err := o.send(text); err != nil {
			log.Printf("[caption] display dropped: %v", err)
		}
	}
}

func (o *OBS) send(text string) error {
	if o.conn == nil {
		if err := o.connect(); err != nil {
			return err
		}
	}

	req := map[string]any{
		"op": opRequest,
		"d": map[string]any{
			"requestType": "SetInputSettings",
			"requestId":   uuid.NewString(),
			"requestData": map[string]any{
				"inputName": o.inputName,
				"inputSettings": map[string]any{
					"text": text,
				},
			},
		},
	}
	o.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	return o.conn.WriteJSON(req)
}

func (o *OBS) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(o.url, nil)
	if err != nil {
		return fmt.Errorf("dial obs at %s: %w", o.url, err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var hello envelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		conn.Close()
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		conn.Close()
		return fmt.Errorf("parse hello: %w", err)
	}

	identify := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"rpcVersion": 1,
		},
	}
	if hd.Authentication != nil {
		identify["d"].(map[string]any)["authentication"] = authToken(
			o.password, hd.Authentication.Salt, hd.Authentication.Challenge)
	}
	if err := conn.WriteJSON(identify); err != nil {
		conn.Close()
		return fmt.Errorf("send identify: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var identified envelope
	if err := conn.ReadJSON(&identified); err != nil {
		conn.Close()
		return fmt.Errorf("read identified: %w", err)
	}
	if identified.Op != opIdentified {
		conn.Close()
		return fmt.Errorf("identify rejected, got op %d", identified.Op)
	}

	conn.SetReadDeadline(time.Time{})
	// Drain server pushes so the read buffer never fills.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	o.conn = conn
	log.Printf("[caption] connected to obs at %s", o.url)
	return nil
}

// authToken derives the obs-websocket v5 auth string:
// base64(sha256(base64(sha256(password+salt)) + challenge)).
func authToken(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func (o *OBS) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closeLocked()
}

func (o *OBS) closeLocked() {
	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
}
