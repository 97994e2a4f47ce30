package tune

import (
	"errors"
	"fmt"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fakeDevice struct {
	syncs int
	err   error
}

func (d *fakeDevice) Sync() error {
	d.syncs++
	return d.err
}

// fakeOp advances the shared clock by its cost every time it executes.
type fakeOp struct {
	Once
	name  string
	cost  time.Duration
	err   error
	clock *fakeClock
	runs  *int
}

func (o *fakeOp) Name() string { return o.name }

func (o *fakeOp) Execute() error {
	if err := o.Consume(); err != nil {
		return err
	}
	*o.runs++
	o.clock.advance(o.cost)
	return o.err
}

func (o *fakeOp) Clone() Operation {
	return &fakeOp{name: o.name, cost: o.cost, err: o.err, clock: o.clock, runs: o.runs}
}

// preparedOp resets its input before every run; the reset takes setup of
// clock time that must never show up in a sample.
type preparedOp struct {
	fakeOp
	setup    time.Duration
	prepares *int
	prepErr  error
}

func (o *preparedOp) Prepare() error {
	*o.prepares++
	o.clock.advance(o.setup)
	return o.prepErr
}

func (o *preparedOp) Clone() Operation {
	return &preparedOp{
		fakeOp:   fakeOp{name: o.name, cost: o.cost, err: o.err, clock: o.clock, runs: o.runs},
		setup:    o.setup,
		prepares: o.prepares,
		prepErr:  o.prepErr,
	}
}

// fakeSet records how often each candidate was timed and how often the
// rebuilt winner ran for real.
type fakeSet struct {
	key      Key
	costs    []time.Duration
	failing  map[int]error
	clock    *fakeClock
	timed    []int
	real     []int
	fastest  []int
	noWinner bool
	keys     []Key // when set, Key() walks through these values
	keyCalls int
}

func newFakeSet(key Key, clock *fakeClock, costs ...time.Duration) *fakeSet {
	return &fakeSet{
		key:   key,
		costs: costs,
		clock: clock,
		timed: make([]int, len(costs)),
		real:  make([]int, len(costs)),
	}
}

func (s *fakeSet) Key() Key {
	if len(s.keys) > 0 {
		k := s.keys[s.keyCalls%len(s.keys)]
		s.keyCalls++
		return k
	}
	return s.key
}

func (s *fakeSet) Autotunables() []Operation {
	ops := make([]Operation, len(s.costs))
	for i, cost := range s.costs {
		ops[i] = &fakeOp{
			name:  fmt.Sprintf("candidate%d", i),
			cost:  cost,
			err:   s.failing[i],
			clock: s.clock,
			runs:  &s.timed[i],
		}
	}
	return ops
}

func (s *fakeSet) Fastest(index int) Operation {
	s.fastest = append(s.fastest, index)
	if s.noWinner {
		return nil
	}
	return &fakeOp{name: fmt.Sprintf("candidate%d", index), clock: s.clock, runs: &s.real[index]}
}

func (s *fakeSet) totalTimed() int {
	n := 0
	for _, t := range s.timed {
		n += t
	}
	return n
}

var errDevice = errors.New("device lost")
