package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePlayer records what it was asked to play.
type fakePlayer struct {
	mu      sync.Mutex
	played  [][]byte
	stopped bool
	err     error
}

func (f *fakePlayer) Play(ctx context.Context, wav []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, wav)
	return f.err
}

func (f *fakePlayer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func fakeVoicevox(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"1.0.0"`))
	})
	mux.HandleFunc("/audio_query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accent_phrases":[],"speedScale":1.0,"pitchScale":0.0}`))
	})
	mux.HandleFunc("/synthesis", func(w http.ResponseWriter, r *http.Request) {
		var q map[string]any
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFFfake-wav"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEngine_Speak(t *testing.T) {
	srv := fakeVoicevox(t)
	player := &fakePlayer{}
	e := NewEngine(srv.URL, 3, 1.0, 5*time.Second, player)

	if err := e.Speak(context.Background(), "hello viewers"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(player.played) != 1 {
		t.Fatalf("played %d clips, want 1", len(player.played))
	}
	if !strings.HasPrefix(string(player.played[0]), "RIFF") {
		t.Errorf("played bytes = %q, want WAV", player.played[0])
	}
}

func TestEngine_SpeakEmptyTextIsNoop(t *testing.T) {
	player := &fakePlayer{}
	e := NewEngine("http://127.0.0.1:1", 0, 1.0, time.Second, player)

	if err := e.Speak(context.Background(), ""); err != nil {
		t.Fatalf("Speak(\"\"): %v", err)
	}
	if len(player.played) != 0 {
		t.Error("empty text should not reach the player")
	}
}

func TestEngine_SpeakEngineDown(t *testing.T) {
	player := &fakePlayer{}
	e := NewEngine("http://127.0.0.1:1", 0, 1.0, 200*time.Millisecond, player)

	if err := e.Speak(context.Background(), "hi"); err == nil {
		t.Fatal("expected error when engine is unreachable")
	}
	if len(player.played) != 0 {
		t.Error("failed synthesis should not reach the player")
	}
}

func TestEngine_ApplySpeed(t *testing.T) {
	e := NewEngine("http://unused", 0, 1.4, time.Second, &fakePlayer{})

	out, err := e.applySpeed([]byte(`{"speedScale":1.0,"pitchScale":0.0}`))
	if err != nil {
		t.Fatalf("applySpeed: %v", err)
	}
	var m map[string]float64
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatal(err)
	}
	if m["speedScale"] != 1.4 {
		t.Errorf("speedScale = %v, want 1.4", m["speedScale"])
	}
	if m["pitchScale"] != 0.0 {
		t.Errorf("pitchScale = %v, want preserved 0.0", m["pitchScale"])
	}
}

func TestEngine_ApplySpeedDefaultUnchanged(t *testing.T) {
	e := NewEngine("http://unused", 0, 1.0, time.Second, &fakePlayer{})
	in := []byte(`{"speedScale":1.0}`)
	out, err := e.applySpeed(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(in) {
		t.Error("speed 1.0 should pass the query through untouched")
	}
}

func TestEngine_Ping(t *testing.T) {
	srv := fakeVoicevox(t)
	e := NewEngine(srv.URL, 0, 1.0, time.Second, &fakePlayer{})
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}

	down := NewEngine("http://127.0.0.1:1", 0, 1.0, 200*time.Millisecond, &fakePlayer{})
	if err := down.Ping(context.Background()); err == nil {
		t.Error("Ping should fail for unreachable engine")
	}
}

func TestEngine_StopForwardsToPlayer(t *testing.T) {
	player := &fakePlayer{}
	e := NewEngine("http://unused", 0, 1.0, time.Second, player)
	e.Stop()
	if !player.stopped {
		t.Error("Stop should reach the player")
	}
}

func TestNewCommandPlayer_DefaultCommand(t *testing.T) {
	p := NewCommandPlayer("")
	if p.name != "ffplay" {
		t.Errorf("name = %q, want ffplay", p.name)
	}
	if len(p.args) == 0 || p.args[len(p.args)-1] != "-" {
		t.Errorf("args = %v, want stdin marker last", p.args)
	}
}
