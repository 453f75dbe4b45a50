package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Speaker turns text into audible speech. Speak blocks until playback
// finishes. Stop aborts in-flight playback; it is only used on forceful
// shutdown paths.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Stop()
}

// Nop is used when speech output is disabled in config.
type Nop struct{}

func (Nop) Speak(context.Context, string) error { return nil }
func (Nop) Stop()                               {}

// Engine speaks through a VOICEVOX-protocol synthesis server (VOICEVOX,
// AivisSpeech and compatibles share the audio_query/synthesis API).
type Engine struct {
	baseURL string
	styleID int
	speed   float64
	client  *http.Client
	player  Player
}

func NewEngine(baseURL string, styleID int, speed float64, timeout time.Duration, player Player) *Engine {
	if player == nil {
		player = NewCommandPlayer("")
	}
	return &Engine{
		baseURL: baseURL,
		styleID: styleID,
		speed:   speed,
		client:  &http.Client{Timeout: timeout},
		player:  player,
	}
}

// Ping verifies the synthesis server is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/version", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("voice engine unreachable at %s: %w", e.baseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("voice engine /version: status %d", resp.StatusCode)
	}
	return nil
}

func (e *Engine) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	wav, err := e.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return e.player.Play(ctx, wav)
}

func (e *Engine) Stop() {
	e.player.Stop()
}

// Synthesize runs the two-step audio_query + synthesis exchange and
// returns WAV bytes.
func (e *Engine) Synthesize(ctx context.Context, text string) ([]byte, error) {
	query, err := e.audioQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/synthesis?speaker=%d", e.baseURL, e.styleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("synthesis: status %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

func (e *Engine) audioQuery(ctx context.Context, text string) ([]byte, error) {
	u := fmt.Sprintf("%s/audio_query?text=%s&speaker=%d",
		e.baseURL, url.QueryEscape(text), e.styleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audio_query request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("audio_query: status %d: %s", resp.StatusCode, body)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return e.applySpeed(data)
}

// applySpeed patches speedScale into the audio query before synthesis.
func (e *Engine) applySpeed(query []byte) ([]byte, error) {
	if e.speed == 0 || e.speed == 1.0 {
		return query, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(query, &m); err != nil {
		return nil, fmt.Errorf("parse audio query: %w", err)
	}
	m["speedScale"] = json.RawMessage(strconv.FormatFloat(e.speed, 'f', -1, 64))
	return json.Marshal(m)
}
