package table

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"asylum-lite/apps/server/internal/codec"
	"asylum-lite/apps/server/internal/ledger"
	"asylum-lite/asylum"
	"asylum-lite/asylum/npc"
	"asylum-lite/replay"
)

// Table runs one asylum session as an actor: every mutation goes through
// the events channel and is applied by run().
type Table struct {
	ID   string
	Room string
	opts Options

	mu       sync.RWMutex
	game     *asylum.Game
	members  map[int]*Member // player id -> seat owner
	closed   bool
	stopOnce sync.Once

	events chan Event
	done   chan struct{}

	serverSeq uint64
	lastSeq   uint64 // last narration entry already flushed

	deadline  time.Time // human action deadline
	endedAt   time.Time
	recorded  bool
	broadcast BroadcastFunc
	ledger    ledger.Service

	npcManager   *npc.Manager
	npcScheduled bool
	npcFailures  int
	autopilot    *npc.RuleBrain

	endHooks []EndHook
}

// Options tunes the actor loop.
type Options struct {
	Tick        time.Duration
	TurnTimeout time.Duration // 0 disables autopilot for idle humans
	OfflineTTL  time.Duration // offline humans are handed to a bot after this
	// NPCThinkDelay > 0 overrides persona delays; < 0 acts immediately.
	NPCThinkDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Tick:        500 * time.Millisecond,
		TurnTimeout: 90 * time.Second,
		OfflineTTL:  45 * time.Second,
	}
}

// Member binds a seat to the account controlling it.
type Member struct {
	PlayerID  int
	AccountID uint64
	Name      string
	Role      asylum.Role
	Robot     bool
	Online    bool
	LastSeen  time.Time
}

// BroadcastFunc delivers one envelope to one seat.
type BroadcastFunc func(tableID string, playerID int, env *structpb.Struct)

type EventType int

const (
	EventCommand EventType = iota
	EventSnapshot
	EventNPCAct
	EventConnLost
	EventConnResume
	EventClose
)

type Event struct {
	Type      EventType
	PlayerID  int
	Command   replay.Command
	Timestamp time.Time
	Response  chan error
}

// EndInfo is emitted once when the session reaches a winner.
type EndInfo struct {
	TableID  string
	Room     string
	Snapshot asylum.Snapshot
	Members  []Member
}

type EndHook func(info EndInfo)

var (
	ErrTableClosed = errors.New("table closed")
	ErrNotSeated   = errors.New("player not seated at this table")
)

// maxNPCFailures 连续失败次数上限，超过后强制结束机器人回合
const maxNPCFailures = 3

func New(
	id, room string,
	cfg asylum.Config,
	roster asylum.Roster,
	members []Member,
	opts Options,
	broadcastFn BroadcastFunc,
	ledgerService ledger.Service,
	npcMgr *npc.Manager,
) (*Table, error) {
	if opts.Tick <= 0 {
		opts.Tick = DefaultOptions().Tick
	}
	if npcMgr == nil {
		npcMgr = npc.NewManager(nil, cfg.Seed)
	}
	game, err := asylum.NewGame(cfg)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	if err := game.Start(roster); err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}

	t := &Table{
		ID:         id,
		Room:       room,
		opts:       opts,
		game:       game,
		members:    make(map[int]*Member, len(members)),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		broadcast:  broadcastFn,
		ledger:     ledgerService,
		npcManager: npcMgr,
		autopilot:  npc.NewRuleBrain(nil, cfg.Seed+1),
	}
	now := time.Now()
	for i := range members {
		m := members[i]
		m.LastSeen = now
		t.members[m.PlayerID] = &m
		if m.Robot && !npcMgr.IsNPC(m.PlayerID) {
			npcMgr.Spawn(m.PlayerID, m.Role, nil)
		}
	}

	t.mu.Lock()
	t.afterChangeLocked(now)
	t.mu.Unlock()

	go t.run()
	log.WithFields(log.Fields{"table": id, "room": room}).Infof("[Table] Created with %d seats", len(members))
	return t, nil
}

func (t *Table) run() {
	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case <-ticker.C:
			t.tick()
		case <-t.done:
			log.WithField("table", t.ID).Info("[Table] Actor stopped")
			return
		}
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}

	switch e.Type {
	case EventCommand:
		return t.handleCommand(e.PlayerID, e.Command, e.Timestamp)
	case EventSnapshot:
		if t.members[e.PlayerID] == nil {
			return ErrNotSeated
		}
		t.sendSnapshotLocked(e.PlayerID)
		return nil
	case EventNPCAct:
		t.handleNPCAct(e.Timestamp)
		return nil
	case EventConnLost:
		return t.handleConnLost(e.PlayerID, e.Timestamp)
	case EventConnResume:
		return t.handleConnResume(e.PlayerID, e.Timestamp)
	case EventClose:
		t.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

func (t *Table) handleCommand(playerID int, cmd replay.Command, now time.Time) error {
	m := t.members[playerID]
	if m == nil {
		return ErrNotSeated
	}
	m.LastSeen = now
	if err := cmd.WithPlayer(playerID).Apply(t.game); err != nil {
		return err
	}
	t.npcFailures = 0
	t.afterChangeLocked(now)
	return nil
}

func (t *Table) handleNPCAct(now time.Time) {
	t.npcScheduled = false
	acted, err := t.npcManager.Step(t.game)
	if err != nil {
		t.npcFailures++
		log.WithField("table", t.ID).Warnf("[Table] NPC action failed (%d): %v", t.npcFailures, err)
		if t.npcFailures >= maxNPCFailures {
			t.forceNPCEndTurnLocked()
		}
	} else if acted {
		t.npcFailures = 0
	}
	t.afterChangeLocked(now)
}

// forceNPCEndTurnLocked ends the current turn when a bot keeps failing.
func (t *Table) forceNPCEndTurnLocked() {
	cur := t.game.Current()
	if !t.npcManager.IsNPC(cur) {
		return
	}
	if err := t.game.EndTurn(cur); err != nil {
		log.WithField("table", t.ID).Warnf("[Table] forced end turn for NPC %d failed: %v", cur, err)
		return
	}
	t.npcFailures = 0
}

// afterChangeLocked flushes narration, pushes state, re-arms timers.
func (t *Table) afterChangeLocked(now time.Time) {
	fresh := t.game.EventsSince(t.lastSeq)
	if len(fresh) > 0 {
		t.lastSeq = fresh[len(fresh)-1].Seq
		t.appendLedgerLocked(fresh)
		t.broadcastLocked("events", func(int) map[string]any { return codec.EventsPayload(fresh) })
	}
	snap := t.game.Snapshot()
	t.broadcastLocked("snapshot", func(viewer int) map[string]any { return codec.SnapshotPayload(snap, viewer) })

	if snap.Ended {
		t.deadline = time.Time{}
		if !t.recorded {
			t.recorded = true
			t.endedAt = now
			t.persistHistoryLocked(snap, now)
			t.dispatchEndHooks(snap)
		}
		return
	}
	if t.opts.TurnTimeout > 0 {
		t.deadline = now.Add(t.opts.TurnTimeout)
	}
	t.scheduleNPCLocked()
}

func (t *Table) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	now := time.Now()
	t.releaseOfflineSeats(now)
	if !t.deadline.IsZero() && !now.Before(t.deadline) {
		t.handleTimeout(now)
	}
}

// releaseOfflineSeats hands seats of long-gone players to bots.
func (t *Table) releaseOfflineSeats(now time.Time) {
	if t.opts.OfflineTTL <= 0 || t.game.Ended() {
		return
	}
	changed := false
	for _, id := range t.memberIDs() {
		m := t.members[id]
		if m.Robot || m.Online || now.Sub(m.LastSeen) < t.opts.OfflineTTL {
			continue
		}
		m.Robot = true
		t.npcManager.Spawn(id, m.Role, nil)
		changed = true
		log.WithFields(log.Fields{"table": t.ID, "player": id}).Infof("[Table] Seat handed to NPC after %s offline", t.opts.OfflineTTL)
	}
	if changed {
		t.scheduleNPCLocked()
	}
}

// handleTimeout lets the autopilot act for the first human the session waits on.
func (t *Table) handleTimeout(now time.Time) {
	snap := t.game.Snapshot()
	for _, id := range t.memberIDs() {
		if t.members[id].Robot {
			continue
		}
		d := t.autopilot.Decide(npc.GameView{Self: id, Snap: snap})
		if d.Action == npc.ActionNone {
			continue
		}
		log.WithFields(log.Fields{"table": t.ID, "player": id}).Infof("[Table] Action timeout -> auto %s", d.Action)
		if err := t.npcManager.Apply(t.game, id, d); err != nil {
			log.WithField("table", t.ID).Warnf("[Table] auto action failed: %v", err)
			if cur := t.game.Current(); cur == id {
				_ = t.game.EndTurn(id)
			}
		}
		t.afterChangeLocked(now)
		return
	}
	t.deadline = now.Add(t.opts.TurnTimeout)
}

func (t *Table) handleConnLost(playerID int, ts time.Time) error {
	m := t.members[playerID]
	if m == nil {
		return nil
	}
	m.Online = false
	m.LastSeen = ts
	log.WithFields(log.Fields{"table": t.ID, "player": playerID}).Info("[Table] Connection lost")
	return nil
}

func (t *Table) handleConnResume(playerID int, ts time.Time) error {
	m := t.members[playerID]
	if m == nil {
		return ErrNotSeated
	}
	m.Online = true
	m.LastSeen = ts
	if m.Robot && m.AccountID != 0 {
		// 玩家回来后收回座位
		m.Robot = false
		t.npcManager.Despawn(playerID)
	}
	t.sendSnapshotLocked(playerID)
	log.WithFields(log.Fields{"table": t.ID, "player": playerID}).Info("[Table] Connection resumed")
	return nil
}

// scheduleNPCLocked runs the bot think delay off the actor goroutine and
// re-enters through the queue.
func (t *Table) scheduleNPCLocked() {
	if t.npcScheduled || t.closed {
		return
	}
	id, _, ok := t.npcManager.Pending(t.game.Snapshot())
	if !ok {
		return
	}
	delay := t.npcManager.GetThinkDelay(id)
	switch {
	case t.opts.NPCThinkDelay > 0:
		delay = t.opts.NPCThinkDelay
	case t.opts.NPCThinkDelay < 0:
		delay = 0
	}
	t.npcScheduled = true

	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-t.done:
				timer.Stop()
				return
			}
		}
		if err := t.SubmitEvent(Event{Type: EventNPCAct}); err != nil && !errors.Is(err, ErrTableClosed) {
			log.WithField("table", t.ID).Warnf("[Table] NPC event rejected: %v", err)
		}
	}()
}

// SubmitEvent sends an event to the actor and waits for its result.
func (t *Table) SubmitEvent(e Event) error {
	e.Timestamp = time.Now()
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

// Command is shorthand for submitting a player command.
func (t *Table) Command(playerID int, cmd replay.Command) error {
	return t.SubmitEvent(Event{Type: EventCommand, PlayerID: playerID, Command: cmd})
}

func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.deadline = time.Time{}
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *Table) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// IsIdleFor reports whether the session ended (or lost every human) ttl ago.
func (t *Table) IsIdleFor(ttl time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return true
	}
	if !t.endedAt.IsZero() {
		return time.Since(t.endedAt) >= ttl
	}
	for _, m := range t.members {
		if m.AccountID != 0 && (m.Online || time.Since(m.LastSeen) < ttl) {
			return false
		}
	}
	return true
}

func (t *Table) Snapshot() asylum.Snapshot {
	return t.game.Snapshot()
}

// Member returns a copy of the seat owner record.
func (t *Table) Member(playerID int) (Member, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.members[playerID]
	if m == nil {
		return Member{}, false
	}
	return *m, true
}

func (t *Table) AddEndHook(hook EndHook) {
	if hook == nil {
		return
	}
	t.mu.Lock()
	t.endHooks = append(t.endHooks, hook)
	t.mu.Unlock()
}

func (t *Table) dispatchEndHooks(snap asylum.Snapshot) {
	info := EndInfo{TableID: t.ID, Room: t.Room, Snapshot: snap}
	for _, id := range t.memberIDs() {
		info.Members = append(info.Members, *t.members[id])
	}
	for _, hook := range t.endHooks {
		go func(h EndHook) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("table", t.ID).Errorf("[Table] end hook panic: %v", r)
				}
			}()
			h(info)
		}(hook)
	}
}

func (t *Table) memberIDs() []int {
	ids := make([]int, 0, len(t.members))
	for id := range t.members {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Table) nextSeq() uint64 {
	t.serverSeq++
	return t.serverSeq
}

func (t *Table) sendLocked(playerID int, typ string, payload map[string]any) {
	if t.broadcast == nil {
		return
	}
	env, err := codec.ServerEnvelope(typ, t.ID, t.nextSeq(), payload)
	if err != nil {
		log.WithField("table", t.ID).Errorf("[Table] build %s envelope failed: %v", typ, err)
		return
	}
	t.broadcast(t.ID, playerID, env)
}

// broadcastLocked sends a per-viewer payload to every online human.
func (t *Table) broadcastLocked(typ string, build func(viewer int) map[string]any) {
	for _, id := range t.memberIDs() {
		m := t.members[id]
		if !m.Online || m.Robot {
			continue
		}
		t.sendLocked(id, typ, build(id))
	}
}

func (t *Table) sendSnapshotLocked(playerID int) {
	t.sendLocked(playerID, "snapshot", codec.SnapshotPayload(t.game.Snapshot(), playerID))
}

func (t *Table) appendLedgerLocked(events []asylum.Event) {
	if t.ledger == nil {
		return
	}
	for _, e := range events {
		env, err := replay.Envelope("event", replay.EventMap(e))
		if err != nil {
			log.WithField("table", t.ID).Warnf("[Table] Build ledger envelope for event %d failed: %v", e.Seq, err)
			continue
		}
		b64, err := replay.EncodeEnvelope(env)
		if err != nil {
			log.WithField("table", t.ID).Warnf("[Table] Encode ledger event %d failed: %v", e.Seq, err)
			continue
		}
		ts := time.Now().UnixMilli()
		t.ledger.AppendLiveEvent(t.ID, ledger.EventItem{
			Seq:         e.Seq,
			EventType:   "event",
			EnvelopeB64: b64,
			ServerTsMs:  &ts,
		})
	}
}

func (t *Table) persistHistoryLocked(snap asylum.Snapshot, now time.Time) {
	log.WithFields(log.Fields{"table": t.ID, "winner": snap.Winner.String()}).Infof("[Table] Session ended after %d turns", snap.Turn)
	if t.ledger == nil {
		return
	}
	for _, id := range t.memberIDs() {
		m := t.members[id]
		if m.AccountID == 0 {
			continue
		}
		summary := map[string]any{
			"room":   t.Room,
			"winner": snap.Winner.String(),
			"turns":  snap.Turn,
			"role":   m.Role.String(),
			"won":    snap.Winner == m.Role,
		}
		if p, ok := snap.Player(id); ok {
			summary["status"] = p.Status.String()
		}
		t.ledger.UpsertLiveHistory(m.AccountID, t.ID, now, summary)
	}
}
