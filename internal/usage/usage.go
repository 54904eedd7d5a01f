package usage

// Ledger is a cumulative usage snapshot: how much a part (or gear) has been used.
// Distances and climbs are in metres, time and duration in seconds, energy in kJ.
type Ledger struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Count    int64  `gorm:"not null" json:"count"`
	Climb    int64  `gorm:"not null" json:"climb"`
	Descend  int64  `gorm:"not null" json:"descend"`
	Distance int64  `gorm:"not null" json:"distance"`
	Time     int64  `gorm:"not null" json:"time"`
	Duration int64  `gorm:"not null" json:"duration"`
	Energy   int64  `gorm:"not null" json:"energy"`
}

// TableName keeps the table name independent of the Go type name.
func (Ledger) TableName() string {
	return "usages"
}

// New returns an all-zero ledger with the given id.
func New(id string) Ledger {
	return Ledger{ID: id}
}

// Add returns the field-wise sum. The id of the receiver is kept.
func (l Ledger) Add(o Ledger) Ledger {
	return Ledger{
		ID:       l.ID,
		Count:    l.Count + o.Count,
		Climb:    l.Climb + o.Climb,
		Descend:  l.Descend + o.Descend,
		Distance: l.Distance + o.Distance,
		Time:     l.Time + o.Time,
		Duration: l.Duration + o.Duration,
		Energy:   l.Energy + o.Energy,
	}
}

// Sub returns the field-wise difference. Results may be negative.
func (l Ledger) Sub(o Ledger) Ledger {
	return l.Add(o.Neg())
}

// Neg negates every counter.
func (l Ledger) Neg() Ledger {
	return Ledger{
		ID:       l.ID,
		Count:    -l.Count,
		Climb:    -l.Climb,
		Descend:  -l.Descend,
		Distance: -l.Distance,
		Time:     -l.Time,
		Duration: -l.Duration,
		Energy:   -l.Energy,
	}
}

// Accrue adds a single contribution, applying its defaulting rules.
func (l Ledger) Accrue(c Contribution) Ledger {
	return l.Add(c.Ledger())
}

// IsZero reports whether all counters are zero. The id is ignored.
func (l Ledger) IsZero() bool {
	l.ID = ""
	return l == Ledger{}
}

// Contribution is one usage contributor, typically an activity, with every
// field optional. Source records are heterogeneous, so the missing values are
// filled in once here and never inside the ledger arithmetic.
type Contribution struct {
	Count    *int64
	Climb    *int64
	Descend  *int64
	Distance *int64
	Time     *int64
	Duration *int64
	Energy   *int64
}

// Ledger resolves the contribution into a ledger delta:
// a missing count is one ride, a missing descend equals the climb,
// and time and duration substitute for each other.
func (c Contribution) Ledger() Ledger {
	return Ledger{
		Count:    or(c.Count, 1),
		Climb:    or(c.Climb, 0),
		Descend:  or(c.Descend, or(c.Climb, 0)),
		Distance: or(c.Distance, 0),
		Time:     or(c.Time, or(c.Duration, 0)),
		Duration: or(c.Duration, or(c.Time, 0)),
		Energy:   or(c.Energy, 0),
	}
}

func or(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

// Sum folds ledgers into one, keeping the given id.
func Sum(id string, ledgers ...Ledger) Ledger {
	res := New(id)
	for _, l := range ledgers {
		res = res.Add(l)
	}
	return res
}
