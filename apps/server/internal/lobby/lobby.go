package lobby

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"asylum-lite/apps/server/internal/ledger"
	"asylum-lite/apps/server/internal/table"
	"asylum-lite/asylum"
	"asylum-lite/asylum/npc"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrRoomStarted  = errors.New("room already started")
	ErrNotStarted   = errors.New("room not started")
	ErrNotInRoom    = errors.New("controller token not in room")
	ErrNotHost      = errors.New("only the host can do that")
	ErrNotDoctor    = errors.New("only the doctor can pick a doctor card")
	ErrInvalidSeat  = errors.New("invalid seat")
	ErrInvalidRole  = errors.New("invalid role")
	ErrUnknownCard  = errors.New("unknown doctor card")
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 4
)

type Options struct {
	Seats  int // seats per room, seat 1 starts as the doctor
	Engine asylum.Config
	Table  table.Options
}

func DefaultOptions() Options {
	return Options{Seats: 4, Engine: asylum.DefaultConfig(), Table: table.DefaultOptions()}
}

// Seat is one slot in a room. Seats nobody claims are played by bots.
type Seat struct {
	Index     int         `json:"index"`
	Role      asylum.Role `json:"-"`
	RoleName  string      `json:"role"`
	Color     string      `json:"color"`
	AccountID uint64      `json:"account_id,omitempty"`
	Name      string      `json:"name,omitempty"`

	token string
}

func (s *Seat) occupied() bool { return s.token != "" }

type Room struct {
	Code       string
	HostSeat   int
	CreatedAt  time.Time
	DoctorCard string
	Seats      []*Seat
	SessionID  string

	table *table.Table
}

// RoomView is the JSON projection of a room.
type RoomView struct {
	Code       string    `json:"code"`
	HostSeat   int       `json:"host_seat"`
	CreatedAt  time.Time `json:"created_at"`
	DoctorCard string    `json:"doctor_card,omitempty"`
	Started    bool      `json:"started"`
	Ended      bool      `json:"ended"`
	SessionID  string    `json:"session_id,omitempty"`
	Seats      []Seat    `json:"seats"`
}

// Ticket is what a player needs to control a seat.
type Ticket struct {
	Room  RoomView `json:"room"`
	Seat  int      `json:"seat"`
	Token string   `json:"token"`
}

// Lobby manages rooms by code.
type Lobby struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	rng   *rand.Rand

	opts      Options
	cards     []asylum.DoctorCard
	ledger    ledger.Service
	personas  *npc.PersonaRegistry
	broadcast table.BroadcastFunc
	endHooks  []table.EndHook
}

func New(opts Options, cards []asylum.DoctorCard, ledgerService ledger.Service, personas *npc.PersonaRegistry) *Lobby {
	if opts.Seats < 2 {
		opts.Seats = DefaultOptions().Seats
	}
	if len(cards) == 0 {
		cards = asylum.DefaultDoctorCards
	}
	if personas == nil {
		personas = npc.DefaultRegistry()
	}
	return &Lobby{
		rooms:    make(map[string]*Room),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		opts:     opts,
		cards:    cards,
		ledger:   ledgerService,
		personas: personas,
	}
}

// SetBroadcaster wires table output to the gateway.
func (l *Lobby) SetBroadcaster(fn table.BroadcastFunc) {
	l.mu.Lock()
	l.broadcast = fn
	l.mu.Unlock()
}

// AddEndHook registers a hook on every table started afterwards.
func (l *Lobby) AddEndHook(hook table.EndHook) {
	l.mu.Lock()
	l.endHooks = append(l.endHooks, hook)
	l.mu.Unlock()
}

func (l *Lobby) DoctorCards() []asylum.DoctorCard {
	return append([]asylum.DoctorCard(nil), l.cards...)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (l *Lobby) newCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[l.rng.Intn(len(codeAlphabet))]
		}
		if _, exists := l.rooms[string(b)]; !exists {
			return string(b)
		}
	}
}

// CreateRoom opens a room and seats the creator as host in seat 1.
func (l *Lobby) CreateRoom(accountID uint64, name string) (Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room := &Room{
		Code:      l.newCodeLocked(),
		HostSeat:  1,
		CreatedAt: time.Now(),
		Seats:     make([]*Seat, 0, l.opts.Seats),
	}
	for i := 1; i <= l.opts.Seats; i++ {
		role := asylum.RolePatient
		if i == 1 {
			role = asylum.RoleDoctor
		}
		room.Seats = append(room.Seats, &Seat{
			Index: i,
			Role:  role,
			Color: asylum.DefaultPalette[(i-1)%len(asylum.DefaultPalette)],
		})
	}
	l.rooms[room.Code] = room
	seat := room.Seats[0]
	claimSeat(seat, accountID, name)

	log.WithField("room", room.Code).Infof("[Lobby] Room created by account %d", accountID)
	return Ticket{Room: room.view(), Seat: seat.Index, Token: seat.token}, nil
}

func claimSeat(seat *Seat, accountID uint64, name string) {
	seat.AccountID = accountID
	seat.Name = strings.TrimSpace(name)
	if seat.Name == "" {
		seat.Name = fmt.Sprintf("玩家%d", seat.Index)
	}
	seat.token = uuid.NewString()
}

// JoinRoom seats the account in the first free seat; rejoining returns the
// same seat.
func (l *Lobby) JoinRoom(code string, accountID uint64, name string) (Ticket, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room := l.rooms[normalizeCode(code)]
	if room == nil {
		return Ticket{}, ErrRoomNotFound
	}
	for _, s := range room.Seats {
		if s.occupied() && accountID != 0 && s.AccountID == accountID {
			return Ticket{Room: room.view(), Seat: s.Index, Token: s.token}, nil
		}
	}
	if room.table != nil {
		return Ticket{}, ErrRoomStarted
	}
	for _, s := range room.Seats {
		if !s.occupied() {
			claimSeat(s, accountID, name)
			log.WithField("room", room.Code).Infof("[Lobby] Account %d took seat %d", accountID, s.Index)
			return Ticket{Room: room.view(), Seat: s.Index, Token: s.token}, nil
		}
	}
	return Ticket{}, ErrRoomFull
}

func (room *Room) seatByToken(token string) *Seat {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	for _, s := range room.Seats {
		if s.token == token {
			return s
		}
	}
	return nil
}

func (l *Lobby) roomAndSeatLocked(code, token string) (*Room, *Seat, error) {
	room := l.rooms[normalizeCode(code)]
	if room == nil {
		return nil, nil, ErrRoomNotFound
	}
	seat := room.seatByToken(token)
	if seat == nil {
		return room, nil, ErrNotInRoom
	}
	return room, seat, nil
}

func (l *Lobby) hostLocked(code, token string) (*Room, error) {
	room, seat, err := l.roomAndSeatLocked(code, token)
	if err != nil {
		return nil, err
	}
	if seat.Index != room.HostSeat {
		return nil, ErrNotHost
	}
	if room.table != nil {
		return nil, ErrRoomStarted
	}
	return room, nil
}

// LeaveRoom frees the seat. The host role moves to the next occupied seat;
// an empty room is removed.
func (l *Lobby) LeaveRoom(code, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, seat, err := l.roomAndSeatLocked(code, token)
	if err != nil {
		return err
	}
	seat.AccountID, seat.Name, seat.token = 0, "", ""

	if room.HostSeat == seat.Index {
		room.HostSeat = 0
		for _, s := range room.Seats {
			if s.occupied() {
				room.HostSeat = s.Index
				break
			}
		}
	}
	if room.HostSeat == 0 {
		if room.table != nil {
			room.table.Stop()
		}
		delete(l.rooms, room.Code)
		log.WithField("room", room.Code).Info("[Lobby] Room closed (empty)")
	}
	return nil
}

// SetRole changes a seat's role. Making a seat the doctor demotes the old one.
func (l *Lobby) SetRole(code, token string, seatIndex int, role asylum.Role) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.hostLocked(code, token)
	if err != nil {
		return RoomView{}, err
	}
	if seatIndex < 1 || seatIndex > len(room.Seats) {
		return RoomView{}, ErrInvalidSeat
	}
	target := room.Seats[seatIndex-1]
	switch role {
	case asylum.RoleDoctor:
		for _, s := range room.Seats {
			s.Role = asylum.RolePatient
		}
		target.Role = asylum.RoleDoctor
	case asylum.RolePatient:
		if target.Role == asylum.RoleDoctor {
			return RoomView{}, fmt.Errorf("%w: the room needs exactly one doctor", ErrInvalidRole)
		}
	default:
		return RoomView{}, ErrInvalidRole
	}
	return room.view(), nil
}

// RandomizeRoles picks a random doctor seat.
func (l *Lobby) RandomizeRoles(code, token string) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.hostLocked(code, token)
	if err != nil {
		return RoomView{}, err
	}
	doctor := l.rng.Intn(len(room.Seats))
	for i, s := range room.Seats {
		s.Role = asylum.RolePatient
		if i == doctor {
			s.Role = asylum.RoleDoctor
		}
	}
	return room.view(), nil
}

// PickDoctorCard is allowed for whoever controls the doctor seat.
func (l *Lobby) PickDoctorCard(code, token, key string) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, seat, err := l.roomAndSeatLocked(code, token)
	if err != nil {
		return RoomView{}, err
	}
	if room.table != nil {
		return RoomView{}, ErrRoomStarted
	}
	if seat.Role != asylum.RoleDoctor {
		return RoomView{}, ErrNotDoctor
	}
	if _, ok := asylum.FindDoctorCard(l.cards, key); !ok {
		return RoomView{}, ErrUnknownCard
	}
	room.DoctorCard = key
	return room.view(), nil
}

// Start builds the roster, fills empty seats with bots and starts the table.
func (l *Lobby) Start(code, token string) (RoomView, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.hostLocked(code, token)
	if err != nil {
		return RoomView{}, err
	}

	npcMgr := npc.NewManager(l.personas, 0)
	roster := asylum.Roster{}
	members := make([]table.Member, 0, len(room.Seats))
	for _, s := range room.Seats {
		seat := asylum.Seat{ID: s.Index, Name: s.Name, Role: s.Role, Color: s.Color}
		member := table.Member{PlayerID: s.Index, AccountID: s.AccountID, Name: s.Name, Role: s.Role}
		if !s.occupied() {
			inst := npcMgr.Spawn(s.Index, s.Role, nil)
			seat.Name, seat.Robot = inst.Persona.Name, true
			member.Name, member.Robot = inst.Persona.Name, true
		}
		roster.Seats = append(roster.Seats, seat)
		members = append(members, member)
	}
	if room.DoctorCard != "" {
		if dc, ok := asylum.FindDoctorCard(l.cards, room.DoctorCard); ok {
			roster.DoctorCard = &dc
		}
	}

	sessionID := fmt.Sprintf("%s_%s", room.Code, uuid.NewString()[:8])
	tbl, err := table.New(sessionID, room.Code, l.opts.Engine, roster, members, l.opts.Table, l.broadcast, l.ledger, npcMgr)
	if err != nil {
		return RoomView{}, err
	}
	tbl.AddEndHook(func(info table.EndInfo) {
		log.WithFields(log.Fields{"room": info.Room, "table": info.TableID}).
			Infof("[Lobby] Session finished, winner=%s", info.Snapshot.Winner)
	})
	for _, hook := range l.endHooks {
		tbl.AddEndHook(hook)
	}
	room.table = tbl
	room.SessionID = sessionID

	log.WithFields(log.Fields{"room": room.Code, "table": sessionID}).Info("[Lobby] Room started")
	return room.view(), nil
}

// Attach resolves a controller token to the running table and seat.
func (l *Lobby) Attach(code, token string) (*table.Table, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	room, seat, err := l.roomAndSeatLocked(code, token)
	if err != nil {
		return nil, 0, err
	}
	if room.table == nil {
		return nil, 0, ErrNotStarted
	}
	return room.table, seat.Index, nil
}

func (l *Lobby) Get(code string) (RoomView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	room := l.rooms[normalizeCode(code)]
	if room == nil {
		return RoomView{}, ErrRoomNotFound
	}
	return room.view(), nil
}

// List returns occupied rooms, newest first.
func (l *Lobby) List() []RoomView {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]RoomView, 0, len(l.rooms))
	for _, room := range l.rooms {
		out = append(out, room.view())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Reap drops rooms whose session has been idle for ttl.
func (l *Lobby) Reap(ttl time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for code, room := range l.rooms {
		idle := room.table == nil && time.Since(room.CreatedAt) >= ttl
		if room.table != nil && room.table.IsIdleFor(ttl) {
			room.table.Stop()
			idle = true
		}
		if idle {
			delete(l.rooms, code)
			n++
			log.WithField("room", code).Info("[Lobby] Room reaped")
		}
	}
	return n
}

func (room *Room) view() RoomView {
	v := RoomView{
		Code:       room.Code,
		HostSeat:   room.HostSeat,
		CreatedAt:  room.CreatedAt,
		DoctorCard: room.DoctorCard,
		Started:    room.table != nil,
		SessionID:  room.SessionID,
		Seats:      make([]Seat, 0, len(room.Seats)),
	}
	if room.table != nil {
		v.Ended = room.table.Snapshot().Ended
	}
	for _, s := range room.Seats {
		cp := *s
		cp.token = ""
		cp.RoleName = s.Role.String()
		v.Seats = append(v.Seats, cp)
	}
	return v
}
