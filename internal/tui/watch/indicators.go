package watch

import "time"

// Ticker alternates between two frames while the stream is live.
type Ticker struct {
	frame int
}

var tickerFrames = []string{"⟲", "⟳"}

func (t *Ticker) Advance() { t.frame = (t.frame + 1) % len(tickerFrames) }

func (t Ticker) String() string { return tickerFrames[t.frame] }

// Pulse lights up after a dispatch and fades over a few seconds.
type Pulse struct {
	last time.Time
}

const pulseWidth = 5

func (p *Pulse) Hit(at time.Time) { p.last = at }

// Render returns a row of dots, fewer lit the older the last hit.
func (p Pulse) Render(now time.Time) string {
	lit := 0
	if !p.last.IsZero() {
		lit = pulseWidth - int(now.Sub(p.last)/time.Second)
		lit = max(0, min(pulseWidth, lit))
	}
	out := make([]rune, 0, pulseWidth)
	for i := range pulseWidth {
		if i < lit {
			out = append(out, '●')
		} else {
			out = append(out, '·')
		}
	}
	return string(out)
}
