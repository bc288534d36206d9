// internal/game/sim.go
package game

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Court geometry and simulation tuning. The court is portrait: players[0]
// defends the bottom edge, players[1] the top edge.
const (
	CourtWidth   = 500.0
	CourtHeight  = 700.0
	PaddleWidth  = 80.0
	PaddleHeight = 12.0
	BallRadius   = 8.0

	// Fixed-rate integration, 20 steps per second.
	TickRate     = 20
	TickInterval = time.Second / TickRate
	tickMillis   = 50.0

	ballSpeedMult = 2.0

	// Paddle collision response.
	spinFactor      = 0.6  // contact offset -> horizontal velocity
	swingCarry      = 0.7  // paddle velocity -> horizontal velocity
	swingSpeedUpCap = 6.0  // max vertical speed-up from a fast swing
	swingSpeedUp    = 0.45 // paddle speed -> vertical speed-up
	minBallVY       = 2.5
	maxBallVY       = 12.0
	maxBallVX       = 10.0

	// Serve physics.
	serveBaseVY    = 3.0
	serveSwingCap  = 8.0
	serveSwingVY   = 0.5
	serveCarry     = 0.8
	serveJitter    = 0.6
	maxServeVX     = 6.0
	homeBottomY    = CourtHeight - 40
	homeTopY       = 28.0
	servePinOffset = 2.0 // gap between paddle face and resting ball
)

// Ball is the simulated ball. Velocity is in court units per tick before
// the speed multiplier.
type Ball struct {
	X, Y   float64
	VX, VY float64
	R      float64
}

// Paddle is one player's paddle plus the bookkeeping used to estimate its
// horizontal velocity from position reports.
type Paddle struct {
	X, Y float64
	W, H float64

	vx      float64 // estimated velocity, court units per tick
	lastX   float64
	lastTs  int64 // client clock, unix millis
	tracked bool
}

// Move clamps the reported position into the court and refreshes the
// velocity estimate from the delta since the previous report, normalized to
// tick units. The estimate decays implicitly: each report replaces it.
func (p *Paddle) Move(newX float64, ts int64) {
	if math.IsNaN(newX) || math.IsInf(newX, 0) {
		return
	}
	prevX, prevTs := p.lastX, p.lastTs
	if !p.tracked {
		prevX, prevTs = newX, ts-int64(tickMillis)
	}
	dtMs := float64(ts - prevTs)
	if dtMs < 1 {
		dtMs = 1
	}
	vx := (newX - prevX) / (dtMs / tickMillis)
	if math.IsNaN(vx) || math.IsInf(vx, 0) {
		vx = 0
	}
	p.vx = vx
	p.lastX = newX
	p.lastTs = ts
	p.tracked = true

	p.X = math.Max(0, math.Min(CourtWidth-p.W, math.Round(newX)))
}

// SwingSpeed exposes the current velocity estimate.
func (p *Paddle) SwingSpeed() float64 { return p.vx }

func (p *Paddle) isTop() bool { return p.Y < CourtHeight/2 }

// SimState is the authoritative per-room simulation state. It has no
// synchronization of its own; the owning Room serializes all access.
type SimState struct {
	Ball    Ball
	Paddles map[uuid.UUID]*Paddle
	Scores  map[uuid.UUID]int
	Running bool
	ServeID uuid.UUID
	Width   float64
	Height  float64
}

// NewSimState lays out a fresh court: players[0] centered at the bottom
// home position, players[1] at the top, ball resting against players[0]'s
// paddle, nothing moving. players[0] serves first by convention.
func NewSimState(players [2]uuid.UUID) *SimState {
	s := &SimState{
		Paddles: map[uuid.UUID]*Paddle{
			players[0]: {X: (CourtWidth - PaddleWidth) / 2, Y: homeBottomY, W: PaddleWidth, H: PaddleHeight},
			players[1]: {X: (CourtWidth - PaddleWidth) / 2, Y: homeTopY, W: PaddleWidth, H: PaddleHeight},
		},
		Scores:  map[uuid.UUID]int{players[0]: 0, players[1]: 0},
		Running: false,
		ServeID: players[0],
		Width:   CourtWidth,
		Height:  CourtHeight,
	}
	s.Ball = Ball{R: BallRadius}
	s.PinBallTo(players[0])
	return s
}

// PinBallTo parks the ball against the given paddle's face with zero
// velocity. Used before every serve and while the server repositions.
func (s *SimState) PinBallTo(id uuid.UUID) {
	p, ok := s.Paddles[id]
	if !ok {
		return
	}
	s.Ball.X = p.X + p.W/2
	if p.isTop() {
		s.Ball.Y = p.Y + p.H + s.Ball.R + servePinOffset
	} else {
		s.Ball.Y = p.Y - s.Ball.R - servePinOffset
	}
	s.Ball.VX = 0
	s.Ball.VY = 0
}

// LaunchServe sets the ball in motion away from the server's paddle.
// Vertical speed grows with the server's swing; horizontal speed carries
// the swing plus a small random component, both clamped.
func (s *SimState) LaunchServe(id uuid.UUID, rng *rand.Rand) {
	p, ok := s.Paddles[id]
	if !ok {
		return
	}
	swing := p.SwingSpeed()
	vy := serveBaseVY + math.Min(serveSwingCap, math.Abs(swing))*serveSwingVY
	vx := swing*serveCarry + (rng.Float64()-0.5)*serveJitter
	vx = math.Max(-maxServeVX, math.Min(maxServeVX, vx))
	if p.isTop() {
		s.Ball.VY = vy // top paddle serves downward
	} else {
		s.Ball.VY = -vy
	}
	s.Ball.VX = vx
	s.Running = true
}

// Step advances the simulation by one tick: ball integration, wall
// reflection, scoring, swept paddle collision. Returns the scorer and true
// when the ball crossed a scoring boundary this tick; the state is then
// already reset to the pre-serve layout for the scorer.
func (s *SimState) Step(players [2]uuid.UUID) (uuid.UUID, bool) {
	if !s.Running {
		return uuid.Nil, false
	}

	prevX, prevY := s.Ball.X, s.Ball.Y
	s.Ball.X += s.Ball.VX * ballSpeedMult
	s.Ball.Y += s.Ball.VY * ballSpeedMult

	// Side walls reflect.
	if s.Ball.X-s.Ball.R < 0 {
		s.Ball.X = s.Ball.R
		s.Ball.VX *= -1
	}
	if s.Ball.X+s.Ball.R > s.Width {
		s.Ball.X = s.Width - s.Ball.R
		s.Ball.VX *= -1
	}

	// Top and bottom edges score. Crossing the top edge credits the bottom
	// defender and vice versa; the scorer serves next.
	if s.Ball.Y-s.Ball.R < 0 {
		s.applyScore(players[0])
		return players[0], true
	}
	if s.Ball.Y+s.Ball.R > s.Height {
		s.applyScore(players[1])
		return players[1], true
	}

	for _, pid := range players {
		s.collidePaddle(s.Paddles[pid], prevX, prevY)
	}
	return uuid.Nil, false
}

func (s *SimState) applyScore(scorer uuid.UUID) {
	s.Scores[scorer]++
	s.Running = false
	s.ServeID = scorer
	s.PinBallTo(scorer)
}

// collidePaddle runs the swept hit test against one paddle and applies the
// collision response. Horizontal overlap is tested against both the current
// and previous ball position so a fast ball cannot tunnel through in one
// step; the vertical test requires the ball to be moving toward the paddle
// and to have crossed its face or to overlap it now.
func (s *SimState) collidePaddle(p *Paddle, prevX, prevY float64) {
	if p == nil {
		return
	}
	hitsXNow := s.Ball.X+s.Ball.R >= p.X && s.Ball.X-s.Ball.R <= p.X+p.W
	hitsXPrev := prevX+s.Ball.R >= p.X && prevX-s.Ball.R <= p.X+p.W
	if !hitsXNow && !hitsXPrev {
		return
	}

	overlappingNow := s.Ball.Y+s.Ball.R >= p.Y && s.Ball.Y-s.Ball.R <= p.Y+p.H

	if p.isTop() {
		crossed := s.Ball.VY < 0 && prevY-s.Ball.R >= p.Y+p.H && s.Ball.Y-s.Ball.R <= p.Y+p.H
		if s.Ball.VY < 0 && (crossed || overlappingNow) {
			s.reboundFrom(p, 1)
			s.Ball.Y = p.Y + p.H + s.Ball.R + 1
		}
	} else {
		crossed := s.Ball.VY > 0 && prevY+s.Ball.R <= p.Y && s.Ball.Y+s.Ball.R >= p.Y
		if s.Ball.VY > 0 && (crossed || overlappingNow) {
			s.reboundFrom(p, -1)
			s.Ball.Y = p.Y - s.Ball.R - 1
		}
	}
}

// reboundFrom reflects the ball off a paddle. Off-center contact imparts
// spin, a moving paddle pushes the ball, and the vertical speed grows with
// swing speed inside a fixed band. dir is +1 for the top paddle (ball
// leaves downward) and -1 for the bottom.
func (s *SimState) reboundFrom(p *Paddle, dir float64) {
	swing := p.SwingSpeed()
	offset := (s.Ball.X - (p.X + p.W/2)) / (p.W / 2)
	s.Ball.VX += offset*spinFactor + swing*swingCarry

	speedUp := math.Min(swingSpeedUpCap, math.Abs(swing)*swingSpeedUp)
	vy := math.Min(maxBallVY, math.Max(minBallVY, math.Abs(s.Ball.VY)+speedUp))
	s.Ball.VY = dir * vy
	s.Ball.VX = math.Max(-maxBallVX, math.Min(maxBallVX, s.Ball.VX))
}
