package replay

// SessionSpec is a command script that regenerates one session.
type SessionSpec struct {
	Seed int64 `json:"seed"`
	// Draws, when set, replaces the seeded source: every die roll and card draw
	// consumes the next value (reduced modulo the range).
	Draws      []int         `json:"draws,omitempty"`
	DoctorCard string        `json:"doctor_card,omitempty"`
	Seats      []SeatSpec    `json:"seats"`
	Commands   []CommandSpec `json:"commands"`
}

type SeatSpec struct {
	ID    int        `json:"id"`
	Name  string     `json:"name,omitempty"`
	Role  string     `json:"role"`
	Color string     `json:"color,omitempty"`
	Spawn *CoordSpec `json:"spawn,omitempty"`
}

type CoordSpec struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CommandSpec is one player command. Type is one of choose_steps, move,
// place_edge, roll_dice, resolve_damage, tunnel_choice, dismiss_tunnel,
// end_turn, draw, exchange, discard.
type CommandSpec struct {
	Player  int    `json:"player"`
	Type    string `json:"type"`
	Steps   int    `json:"steps,omitempty"`
	Dir     string `json:"dir,omitempty"`
	Card    string `json:"card,omitempty"`
	Dice    string `json:"dice,omitempty"`
	Stat    string `json:"stat,omitempty"`
	Role    string `json:"role,omitempty"`
	Action  string `json:"action,omitempty"`
	Penalty string `json:"penalty,omitempty"`
	Item    int    `json:"item,omitempty"`
	Deck    string `json:"deck,omitempty"`
	Indices []int  `json:"indices,omitempty"`
}

type ReplayTape struct {
	TapeVersion int           `json:"tape_version"`
	SessionID   string        `json:"session_id"`
	Events      []ReplayEvent `json:"events"`
}

// ReplayEvent is one narrated entry (or the closing snapshot) of the tape.
// Step is the command index that produced it; -1 for session setup.
type ReplayEvent struct {
	Type        string `json:"type"`
	Seq         uint64 `json:"seq"`
	Step        int32  `json:"step"`
	Kind        string `json:"kind,omitempty"`
	Player      int    `json:"player,omitempty"`
	Text        string `json:"text,omitempty"`
	EnvelopeB64 string `json:"envelope_b64,omitempty"`
}
