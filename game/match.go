package game

import (
	"fmt"
)

// Phase is the lifecycle position of a match.
type Phase string

const (
	// PhaseAwaitingSubmissions: the current round has no moves yet.
	PhaseAwaitingSubmissions Phase = "awaiting_submissions"
	// PhaseInProgress: one of the two moves for the current round is in.
	PhaseInProgress Phase = "in_progress"
	// PhaseResolving: both moves are in and the round can be resolved.
	PhaseResolving Phase = "resolving"
	PhaseFinished  Phase = "finished"
	PhaseAbandoned Phase = "abandoned"
)

func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseAbandoned
}

// Role tells what kind of seat a participant occupies.
type Role string

const (
	RoleHost    Role = "host"
	RoleGuest   Role = "guest"
	RoleHuman   Role = "human"
	RoleMachine Role = "machine"
)

// Participant is one side of a duel.
type Participant struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Bullets   int    `json:"bullets"`
	RoundsWon int    `json:"rounds_won"`
}

// Submission is one participant's move for one round.
type Submission struct {
	ParticipantID string `json:"participant_id"`
	Round         int    `json:"round"`
	Action        Action `json:"action"`
}

// RoundOutcome is the immutable result of a resolved round.
// Actions and Bullets are indexed like the match participants; an empty
// action means the participant timed out.
type RoundOutcome struct {
	Round    int       `json:"round"`
	Actions  [2]Action `json:"actions"`
	Winner   Winner    `json:"winner"`
	WinnerID string    `json:"winner_id,omitempty"`
	TimedOut []string  `json:"timed_out,omitempty"`
	Bullets  [2]int    `json:"bullets_after"`
}

// MatchConcluded is emitted once when a match reaches Finished.
type MatchConcluded struct {
	MatchID     string `json:"match_id"`
	WinnerID    string `json:"winner_id"`
	LoserID     string `json:"loser_id"`
	TotalRounds int    `json:"total_rounds"`
}

// State is a read-only projection of a match, also used to rebuild one from storage.
type State struct {
	MatchID      string         `json:"match_id"`
	Phase        Phase          `json:"phase"`
	Round        int            `json:"round"`
	Participants [2]Participant `json:"participants"`
	Pending      []Submission   `json:"pending,omitempty"`
	History      []RoundOutcome `json:"history"`
	AbandonedBy  string         `json:"abandoned_by,omitempty"`
}

// Match coordinates rounds between two participants. It is not safe for
// concurrent use; callers serialize access per match.
type Match struct {
	id           string
	cfg          Config
	ledger       Ledger
	participants [2]Participant
	round        int
	phase        Phase
	pending      [2]*Action
	history      []RoundOutcome
	abandonedBy  string
}

// NewMatch starts a match at round 1 with both participants unarmed.
func NewMatch(id string, cfg Config, a, b Participant) (*Match, error) {
	a.Bullets, a.RoundsWon = 0, 0
	b.Bullets, b.RoundsWon = 0, 0
	return Restore(cfg, State{
		MatchID:      id,
		Phase:        PhaseAwaitingSubmissions,
		Round:        1,
		Participants: [2]Participant{a, b},
	})
}

// Restore rebuilds a match from a stored projection, enforcing its invariants.
func Restore(cfg Config, s State) (*Match, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.Round < 1 {
		return nil, fmt.Errorf("round must start at 1, got %d", s.Round)
	}
	a, b := s.Participants[0], s.Participants[1]
	if a.ID == "" || b.ID == "" {
		return nil, fmt.Errorf("participants need an identity")
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("participant %s cannot duel itself", a.ID)
	}
	for _, p := range s.Participants {
		if p.Bullets < 0 || p.Bullets > cfg.MaxBullets {
			return nil, fmt.Errorf("participant %s has %d bullets, want 0..%d", p.ID, p.Bullets, cfg.MaxBullets)
		}
		if p.RoundsWon < 0 || p.RoundsWon > cfg.WinThreshold {
			return nil, fmt.Errorf("participant %s has %d rounds won, want 0..%d", p.ID, p.RoundsWon, cfg.WinThreshold)
		}
	}

	m := &Match{
		id:           s.MatchID,
		cfg:          cfg,
		ledger:       NewLedger(cfg.MaxBullets),
		participants: s.Participants,
		round:        s.Round,
		history:      append([]RoundOutcome(nil), s.History...),
		abandonedBy:  s.AbandonedBy,
	}
	for i, o := range m.history {
		if o.Round != i+1 {
			return nil, fmt.Errorf("history out of order: entry %d is round %d", i, o.Round)
		}
	}

	if s.Phase.Terminal() {
		m.phase = s.Phase
		return m, nil
	}
	if len(m.history) != m.round-1 {
		return nil, fmt.Errorf("round %d is open but %d rounds are settled", m.round, len(m.history))
	}
	for _, p := range m.participants {
		if p.RoundsWon >= cfg.WinThreshold {
			return nil, fmt.Errorf("participant %s already won %d rounds in an open match", p.ID, p.RoundsWon)
		}
	}
	for _, sub := range s.Pending {
		if sub.Round != m.round {
			continue
		}
		idx, ok := m.index(sub.ParticipantID)
		if !ok {
			return nil, &ParticipantNotFoundError{ParticipantID: sub.ParticipantID}
		}
		if m.pending[idx] != nil {
			return nil, &DuplicateSubmissionError{ParticipantID: sub.ParticipantID, Round: sub.Round}
		}
		action := sub.Action
		m.pending[idx] = &action
	}
	m.transition()
	return m, nil
}

func (m *Match) ID() string          { return m.id }
func (m *Match) Config() Config      { return m.cfg }
func (m *Match) Round() int          { return m.round }
func (m *Match) Phase() Phase        { return m.phase }
func (m *Match) IsFinished() bool    { return m.phase == PhaseFinished }
func (m *Match) AbandonedBy() string { return m.abandonedBy }

// Participants returns copies of both sides.
func (m *Match) Participants() [2]Participant { return m.participants }

func (m *Match) Participant(id string) (Participant, bool) {
	idx, ok := m.index(id)
	if !ok {
		return Participant{}, false
	}
	return m.participants[idx], true
}

// Opponent returns the other side of id.
func (m *Match) Opponent(id string) (Participant, bool) {
	idx, ok := m.index(id)
	if !ok {
		return Participant{}, false
	}
	return m.participants[1-idx], true
}

// History returns resolved rounds, oldest first.
func (m *Match) History() []RoundOutcome {
	return append([]RoundOutcome(nil), m.history...)
}

// ActionsOf returns the actions id played in resolved rounds, most recent last.
// Timed out rounds are skipped.
func (m *Match) ActionsOf(id string) []Action {
	idx, ok := m.index(id)
	if !ok {
		return nil
	}
	var out []Action
	for _, o := range m.history {
		if o.Actions[idx] != "" {
			out = append(out, o.Actions[idx])
		}
	}
	return out
}

// Submitted reports whether id has a move in for the current round.
func (m *Match) Submitted(id string) bool {
	idx, ok := m.index(id)
	return ok && m.pending[idx] != nil
}

// Winner returns the participant that reached the win threshold, if any.
func (m *Match) Winner() (Participant, bool) {
	if m.phase != PhaseFinished {
		return Participant{}, false
	}
	for _, p := range m.participants {
		if p.RoundsWon >= m.cfg.WinThreshold {
			return p, true
		}
	}
	return Participant{}, false
}

// Conclusion returns the MatchConcluded event of a finished match.
func (m *Match) Conclusion() (MatchConcluded, bool) {
	w, ok := m.Winner()
	if !ok {
		return MatchConcluded{}, false
	}
	l, _ := m.Opponent(w.ID)
	return MatchConcluded{
		MatchID:     m.id,
		WinnerID:    w.ID,
		LoserID:     l.ID,
		TotalRounds: m.round,
	}, true
}

// State returns a projection safe to hand to callers.
func (m *Match) State() State {
	s := State{
		MatchID:      m.id,
		Phase:        m.phase,
		Round:        m.round,
		Participants: m.participants,
		History:      m.History(),
		AbandonedBy:  m.abandonedBy,
	}
	for i, a := range m.pending {
		if a != nil {
			s.Pending = append(s.Pending, Submission{
				ParticipantID: m.participants[i].ID,
				Round:         m.round,
				Action:        *a,
			})
		}
	}
	return s
}

// Submit records a move for the current round. Legality is checked against
// the participant's bullets now, not at resolution.
func (m *Match) Submit(participantID string, round int, action Action) error {
	if m.phase.Terminal() {
		return &MatchFinishedError{Phase: m.phase}
	}
	idx, ok := m.index(participantID)
	if !ok {
		return &ParticipantNotFoundError{ParticipantID: participantID}
	}
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if round != m.round {
		return &RoundMismatchError{Got: round, Current: m.round}
	}
	if m.pending[idx] != nil {
		return &DuplicateSubmissionError{ParticipantID: participantID, Round: round}
	}
	if bullets := m.participants[idx].Bullets; !m.ledger.Legal(bullets, action) {
		return &IllegalActionError{Action: action, Bullets: bullets}
	}
	m.pending[idx] = &action
	m.transition()
	return nil
}

// Resolve settles round once both moves are in. Resolving a round that is
// already settled returns the stored outcome and changes nothing.
func (m *Match) Resolve(round int) (RoundOutcome, error) {
	if o, ok := m.outcome(round); ok {
		return o, nil
	}
	if m.phase.Terminal() {
		return RoundOutcome{}, &MatchFinishedError{Phase: m.phase}
	}
	if round != m.round {
		return RoundOutcome{}, &RoundNotReadyError{Round: round}
	}
	if m.phase != PhaseResolving {
		return RoundOutcome{}, &RoundNotReadyError{Round: round, Submissions: m.submissions()}
	}
	a, b := *m.pending[0], *m.pending[1]
	return m.settle([2]Action{a, b}, Resolve(a, b), nil)
}

// Expire is the timeout signal for round. Silent participants are handled by
// the configured TimeoutPolicy. When both moves are already in the round
// resolves normally.
func (m *Match) Expire(round int) (RoundOutcome, error) {
	if o, ok := m.outcome(round); ok {
		return o, nil
	}
	if m.phase.Terminal() {
		return RoundOutcome{}, &MatchFinishedError{Phase: m.phase}
	}
	if round != m.round {
		return RoundOutcome{}, &RoundMismatchError{Got: round, Current: m.round}
	}
	if m.phase == PhaseResolving {
		return m.Resolve(round)
	}

	var actions [2]Action
	var timedOut []string
	for i, a := range m.pending {
		if a == nil {
			timedOut = append(timedOut, m.participants[i].ID)
			continue
		}
		actions[i] = *a
	}

	winner := Tie
	if m.cfg.TimeoutPolicy == TimeoutForfeit && len(timedOut) == 1 {
		if m.pending[0] != nil {
			winner = WinnerA
		} else {
			winner = WinnerB
		}
	}
	return m.settle(actions, winner, timedOut)
}

// Abandon ends the match because participantID left. No winner is credited.
func (m *Match) Abandon(participantID string) error {
	if m.phase.Terminal() {
		return &MatchFinishedError{Phase: m.phase}
	}
	if _, ok := m.index(participantID); !ok {
		return &ParticipantNotFoundError{ParticipantID: participantID}
	}
	m.abandonedBy = participantID
	m.pending = [2]*Action{}
	m.phase = PhaseAbandoned
	return nil
}

// settle applies ammo deltas and the round win, then moves the match on.
func (m *Match) settle(actions [2]Action, winner Winner, timedOut []string) (RoundOutcome, error) {
	next := m.participants
	for i, a := range actions {
		if a == "" {
			continue
		}
		bullets, err := m.ledger.Apply(next[i].Bullets, a)
		if err != nil {
			return RoundOutcome{}, err
		}
		next[i].Bullets = bullets
	}

	o := RoundOutcome{
		Round:    m.round,
		Actions:  actions,
		Winner:   winner,
		TimedOut: timedOut,
	}
	switch winner {
	case WinnerA:
		next[0].RoundsWon++
		o.WinnerID = next[0].ID
	case WinnerB:
		next[1].RoundsWon++
		o.WinnerID = next[1].ID
	}
	o.Bullets = [2]int{next[0].Bullets, next[1].Bullets}

	m.participants = next
	m.history = append(m.history, o)
	m.pending = [2]*Action{}
	if next[0].RoundsWon >= m.cfg.WinThreshold || next[1].RoundsWon >= m.cfg.WinThreshold {
		m.phase = PhaseFinished
		return o, nil
	}
	m.round++
	m.transition()
	return o, nil
}

// transition derives the non-terminal phase from the pending moves.
func (m *Match) transition() {
	if m.phase.Terminal() {
		return
	}
	switch m.submissions() {
	case 0:
		m.phase = PhaseAwaitingSubmissions
	case 1:
		m.phase = PhaseInProgress
	default:
		m.phase = PhaseResolving
	}
}

func (m *Match) submissions() int {
	n := 0
	for _, a := range m.pending {
		if a != nil {
			n++
		}
	}
	return n
}

func (m *Match) outcome(round int) (RoundOutcome, bool) {
	if round < 1 || round > len(m.history) {
		return RoundOutcome{}, false
	}
	return m.history[round-1], true
}

func (m *Match) index(id string) (int, bool) {
	for i, p := range m.participants {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}
