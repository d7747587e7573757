package game

import "fmt"

type Phase string

const (
	PhaseDay   Phase = "day"
	PhaseNight Phase = "night"
)

// Transition describes a phase flip reported by the scheduler.
type Transition struct {
	From  Phase
	To    Phase
	Cycle int64
}

// Scheduler is the sole authority over the day/night cycle. It is
// tick-counted: each game tick advances the counter, and the counter
// wrapping flips the phase. Wall-clock duration of a phase is therefore
// ticks x tick-interval, both config knobs.
type Scheduler struct {
	dayTicks   int64
	nightTicks int64

	phase   Phase
	cycle   int64
	counter int64
}

func NewScheduler(dayTicks, nightTicks int64) *Scheduler {
	if dayTicks <= 0 {
		dayTicks = 1
	}
	if nightTicks <= 0 {
		nightTicks = 1
	}
	return &Scheduler{
		dayTicks:   dayTicks,
		nightTicks: nightTicks,
		phase:      PhaseDay,
	}
}

func (s *Scheduler) Phase() Phase { return s.phase }
func (s *Scheduler) Cycle() int64 { return s.cycle }

// Advance moves the cycle forward one tick and returns the transition if
// this tick crossed a phase boundary.
func (s *Scheduler) Advance() (Transition, bool) {
	s.counter++
	switch s.phase {
	case PhaseDay:
		if s.counter >= s.dayTicks {
			s.phase = PhaseNight
			s.counter = 0
			return Transition{From: PhaseDay, To: PhaseNight, Cycle: s.cycle}, true
		}
	case PhaseNight:
		if s.counter >= s.nightTicks {
			s.phase = PhaseDay
			s.counter = 0
			s.cycle++
			return Transition{From: PhaseNight, To: PhaseDay, Cycle: s.cycle}, true
		}
	}
	return Transition{}, false
}

// Clock renders the in-game calendar: day number plus an hour hand
// derived from the tick counter. A day phase spans 06:00-22:00, the
// night the remaining eight hours.
func (s *Scheduler) Clock() string {
	const dayStartHour = 6
	const dayHours = 16
	var hour, minute int64
	switch s.phase {
	case PhaseDay:
		span := s.dayTicks
		hour = dayStartHour + s.counter*dayHours/span
		minute = (s.counter * dayHours * 60 / span) % 60
	default:
		span := s.nightTicks
		hour = (dayStartHour + dayHours + s.counter*(24-dayHours)/span) % 24
		minute = (s.counter * (24 - dayHours) * 60 / span) % 60
	}
	return fmt.Sprintf("day %d %02d:%02d", s.cycle+1, hour, minute)
}
