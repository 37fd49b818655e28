package adminhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/park285/kakao-minigame-bot/internal/minigame"
	"github.com/park285/kakao-minigame-bot/internal/minigame/dice"
	"github.com/park285/kakao-minigame-bot/pkg/gamedto"
)

type forgetter struct{ rooms []string }

func (f *forgetter) Forget(_ context.Context, room string) error {
	f.rooms = append(f.rooms, room)
	return nil
}

func newEngine(t *testing.T) *minigame.Engine {
	t.Helper()
	eng := minigame.New([]minigame.Game{dice.New()})
	t.Cleanup(eng.Close)
	ctx := context.Background()
	if _, err := eng.StartSingle(ctx, minigame.ActorAction{Realm: "room", Actor: "u1", ActorName: "앨리스", Game: dice.Kind}); err != nil {
		t.Fatalf("StartSingle: %v", err)
	}
	if _, err := eng.ProposeChallenge(ctx, minigame.ActorAction{Realm: "room", Actor: "u2", Target: "u3", Game: dice.Kind}); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	return eng
}

func do(t *testing.T, h http.Handler, method, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestHealthz(t *testing.T) {
	h := New(newEngine(t)).Routes()
	var body map[string]string
	if code := do(t, h, http.MethodGet, "/healthz", &body); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, body)
	}

	down := New(newEngine(t), WithHealthCheck(func() error { return errors.New("ws disconnected") })).Routes()
	if code := do(t, down, http.MethodGet, "/healthz", &body); code != http.StatusServiceUnavailable || body["reason"] != "ws disconnected" {
		t.Fatalf("degraded healthz = %d %v", code, body)
	}
}

func TestStatsAndSessions(t *testing.T) {
	h := New(newEngine(t)).Routes()

	var st gamedto.EngineStats
	if code := do(t, h, http.MethodGet, "/v1/stats", &st); code != http.StatusOK {
		t.Fatalf("stats code = %d", code)
	}
	if st.Sessions != 1 || st.Challenges != 1 || st.ByKind[dice.Kind] != 1 {
		t.Fatalf("stats = %+v", st)
	}

	var list []gamedto.Session
	do(t, h, http.MethodGet, "/v1/realms/room/sessions", &list)
	if len(list) != 1 || list[0].Primary != "u1" || list[0].Mode != "single" || list[0].Names["u1"] != "앨리스" {
		t.Fatalf("sessions = %+v", list)
	}
	do(t, h, http.MethodGet, "/v1/realms/empty/sessions", &list)
	if len(list) != 0 {
		t.Fatalf("empty realm = %+v", list)
	}
}

func TestDropRealm(t *testing.T) {
	eng := newEngine(t)
	f := &forgetter{}
	h := New(eng, WithRealmForgetter(f)).Routes()

	var res gamedto.DropResult
	if code := do(t, h, http.MethodDelete, "/v1/realms/room", &res); code != http.StatusOK {
		t.Fatalf("drop code = %d", code)
	}
	if len(res.Sessions) != 1 || len(res.Challenges) != 1 || res.Challenges[0].Challenged != "u3" {
		t.Fatalf("drop = %+v", res)
	}
	if len(f.rooms) != 1 || f.rooms[0] != "room" {
		t.Fatalf("roster not forgotten: %v", f.rooms)
	}
	if st := eng.Stats(); st.Sessions != 0 || st.Challenges != 0 {
		t.Fatalf("engine not empty: %+v", st)
	}

	do(t, h, http.MethodDelete, "/v1/realms/room", &res)
	if len(res.Sessions) != 0 || len(res.Challenges) != 0 {
		t.Fatalf("second drop should be empty: %+v", res)
	}
}
