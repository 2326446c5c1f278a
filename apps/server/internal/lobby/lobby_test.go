package lobby

import (
	"errors"
	"testing"
	"time"

	"asylum-lite/apps/server/internal/table"
	"asylum-lite/asylum"
)

func newTestLobby() *Lobby {
	opts := DefaultOptions()
	opts.Engine.Seed = 42
	opts.Table = table.Options{Tick: 20 * time.Millisecond, NPCThinkDelay: -1}
	return New(opts, nil, nil, nil)
}

func doctorSeats(v RoomView) []int {
	var out []int
	for _, s := range v.Seats {
		if s.RoleName == asylum.RoleDoctor.String() {
			out = append(out, s.Index)
		}
	}
	return out
}

func TestCreateAndJoin(t *testing.T) {
	l := newTestLobby()
	host, err := l.CreateRoom(1, "alice")
	if err != nil {
		t.Fatalf("CreateRoom err: %v", err)
	}
	if host.Seat != 1 || host.Token == "" || len(host.Room.Code) != codeLength {
		t.Fatalf("unexpected host ticket %+v", host)
	}
	if d := doctorSeats(host.Room); len(d) != 1 || d[0] != 1 {
		t.Fatalf("expected seat 1 to be the doctor, got %v", d)
	}

	guest, err := l.JoinRoom(host.Room.Code, 2, "bob")
	if err != nil {
		t.Fatalf("JoinRoom err: %v", err)
	}
	if guest.Seat != 2 || guest.Token == host.Token {
		t.Fatalf("unexpected guest ticket %+v", guest)
	}
	again, err := l.JoinRoom(host.Room.Code, 2, "bob")
	if err != nil {
		t.Fatalf("rejoin err: %v", err)
	}
	if again.Seat != guest.Seat || again.Token != guest.Token {
		t.Fatalf("rejoin should return the same seat, got %+v", again)
	}

	for i := 3; i <= 4; i++ {
		if _, err := l.JoinRoom(host.Room.Code, uint64(i), ""); err != nil {
			t.Fatalf("JoinRoom(%d) err: %v", i, err)
		}
	}
	if _, err := l.JoinRoom(host.Room.Code, 9, "late"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}
	if _, err := l.JoinRoom("ZZZZ", 9, ""); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	for _, s := range again.Room.Seats {
		if s.token != "" {
			t.Fatalf("room view leaked a controller token")
		}
	}
}

func TestRolesAndDoctorCard(t *testing.T) {
	l := newTestLobby()
	host, _ := l.CreateRoom(1, "alice")
	guest, _ := l.JoinRoom(host.Room.Code, 2, "bob")
	code := host.Room.Code

	if _, err := l.SetRole(code, guest.Token, 2, asylum.RoleDoctor); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if _, err := l.SetRole(code, host.Token, 1, asylum.RolePatient); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole when removing the only doctor, got %v", err)
	}
	if _, err := l.SetRole(code, host.Token, 7, asylum.RoleDoctor); !errors.Is(err, ErrInvalidSeat) {
		t.Fatalf("expected ErrInvalidSeat, got %v", err)
	}
	view, err := l.SetRole(code, host.Token, 2, asylum.RoleDoctor)
	if err != nil {
		t.Fatalf("SetRole err: %v", err)
	}
	if d := doctorSeats(view); len(d) != 1 || d[0] != 2 {
		t.Fatalf("expected seat 2 to be the only doctor, got %v", d)
	}

	if _, err := l.PickDoctorCard(code, host.Token, "heal"); !errors.Is(err, ErrNotDoctor) {
		t.Fatalf("expected ErrNotDoctor, got %v", err)
	}
	if _, err := l.PickDoctorCard(code, guest.Token, "nope"); !errors.Is(err, ErrUnknownCard) {
		t.Fatalf("expected ErrUnknownCard, got %v", err)
	}
	view, err = l.PickDoctorCard(code, guest.Token, "speed")
	if err != nil {
		t.Fatalf("PickDoctorCard err: %v", err)
	}
	if view.DoctorCard != "speed" {
		t.Fatalf("expected speed card, got %q", view.DoctorCard)
	}

	for i := 0; i < 10; i++ {
		view, err = l.RandomizeRoles(code, host.Token)
		if err != nil {
			t.Fatalf("RandomizeRoles err: %v", err)
		}
		if d := doctorSeats(view); len(d) != 1 {
			t.Fatalf("randomize must keep exactly one doctor, got %v", d)
		}
	}
}

func TestStartFillsBotsAndAttaches(t *testing.T) {
	l := newTestLobby()
	host, _ := l.CreateRoom(1, "alice")
	guest, _ := l.JoinRoom(host.Room.Code, 2, "bob")
	code := host.Room.Code

	if _, _, err := l.Attach(code, host.Token); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if _, err := l.Start(code, guest.Token); !errors.Is(err, ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	if _, err := l.PickDoctorCard(code, host.Token, "shield"); err != nil {
		t.Fatalf("PickDoctorCard err: %v", err)
	}
	view, err := l.Start(code, host.Token)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if !view.Started || view.SessionID == "" {
		t.Fatalf("unexpected started view %+v", view)
	}
	if _, err := l.Start(code, host.Token); !errors.Is(err, ErrRoomStarted) {
		t.Fatalf("expected ErrRoomStarted, got %v", err)
	}
	if _, err := l.JoinRoom(code, 5, "late"); !errors.Is(err, ErrRoomStarted) {
		t.Fatalf("expected ErrRoomStarted on join, got %v", err)
	}

	tbl, playerID, err := l.Attach(code, guest.Token)
	if err != nil {
		t.Fatalf("Attach err: %v", err)
	}
	defer tbl.Stop()
	if playerID != 2 {
		t.Fatalf("expected player 2, got %d", playerID)
	}
	snap := tbl.Snapshot()
	if len(snap.Players) != 4 {
		t.Fatalf("expected 4 players, got %d", len(snap.Players))
	}
	robots := 0
	for _, p := range snap.Players {
		if p.Robot {
			robots++
		}
	}
	if robots != 2 {
		t.Fatalf("expected 2 bot seats, got %d", robots)
	}
	if snap.DoctorCard == nil || snap.DoctorCard.Key != "shield" {
		t.Fatalf("expected shield doctor card, got %+v", snap.DoctorCard)
	}
}

func TestLeaveTransfersHostAndClosesEmptyRoom(t *testing.T) {
	l := newTestLobby()
	host, _ := l.CreateRoom(1, "alice")
	guest, _ := l.JoinRoom(host.Room.Code, 2, "bob")
	code := host.Room.Code

	if err := l.LeaveRoom(code, host.Token); err != nil {
		t.Fatalf("LeaveRoom err: %v", err)
	}
	view, err := l.Get(code)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if view.HostSeat != guest.Seat {
		t.Fatalf("expected host to move to seat %d, got %d", guest.Seat, view.HostSeat)
	}
	if err := l.LeaveRoom(code, host.Token); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("expected ErrNotInRoom for stale token, got %v", err)
	}
	if err := l.LeaveRoom(code, guest.Token); err != nil {
		t.Fatalf("LeaveRoom err: %v", err)
	}
	if _, err := l.Get(code); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected room removed, got %v", err)
	}
}

func TestListAndReap(t *testing.T) {
	l := newTestLobby()
	a, _ := l.CreateRoom(1, "a")
	time.Sleep(2 * time.Millisecond)
	b, _ := l.CreateRoom(2, "b")

	rooms := l.List()
	if len(rooms) != 2 || rooms[0].Code != b.Room.Code || rooms[1].Code != a.Room.Code {
		t.Fatalf("expected newest first, got %+v", rooms)
	}
	if n := l.Reap(time.Hour); n != 0 {
		t.Fatalf("expected nothing reaped, got %d", n)
	}
	if n := l.Reap(0); n != 2 {
		t.Fatalf("expected 2 rooms reaped, got %d", n)
	}
	if len(l.List()) != 0 {
		t.Fatalf("expected empty lobby")
	}
}

func TestParseDoctorCards(t *testing.T) {
	cards, err := LoadDoctorCards("")
	if err != nil {
		t.Fatalf("LoadDoctorCards err: %v", err)
	}
	if len(cards) != len(asylum.DefaultDoctorCards) {
		t.Fatalf("expected %d built-in cards, got %d", len(asylum.DefaultDoctorCards), len(cards))
	}
	if c, ok := asylum.FindDoctorCard(cards, "speed"); !ok || len(c.Tags) != 1 || c.Tags[0] != "speed+2" {
		t.Fatalf("unexpected speed card %+v", c)
	}

	bad := []string{
		"[]",
		"- name: nokey\n",
		"- key: a\n- key: a\n",
		"key: [",
	}
	for _, raw := range bad {
		if _, err := ParseDoctorCards([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
