package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gear-maintenance-backend/internal/model"
	"gear-maintenance-backend/internal/usage"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return epoch.AddDate(0, 0, n)
}

func ref(s string) *string { return &s }

type ledgerMap map[string]usage.Ledger

func (m ledgerMap) Ledger(id string) usage.Ledger {
	if l, ok := m[id]; ok {
		return l
	}
	return usage.New(id)
}

// chain returns S1 -> S2 -> S3 on part 7, S3 being the latest.
func chain() []model.Service {
	return []model.Service{
		{ID: "s1", PartID: 7, Time: day(10), Name: "s1", UsageID: "u1", Successor: ref("s2")},
		{ID: "s2", PartID: 7, Time: day(20), Name: "s2", UsageID: "u2", Successor: ref("s3")},
		{ID: "s3", PartID: 7, Time: day(30), Name: "s3", UsageID: "u3"},
	}
}

func TestHistory_LinearChain(t *testing.T) {
	c := NewChain(chain())
	s3, ok := c.Service("s3")
	require.True(t, ok)

	entries := c.History(0, s3)
	require.Len(t, entries, 3)

	assert.Equal(t, "s2", entries[0].Service.ID)
	assert.Equal(t, "s3", entries[0].Successor.ID)
	assert.Equal(t, "s1", entries[1].Service.ID)
	assert.Equal(t, "s2", entries[1].Successor.ID)
	assert.True(t, entries[2].Service.IsGenesis())
	assert.Equal(t, model.GenesisName, entries[2].Service.Name)
	require.NotNil(t, entries[2].Service.Successor)
	assert.Equal(t, "s1", *entries[2].Service.Successor)

	for i := 1; i < len(entries); i++ {
		assert.Greater(t, entries[i].Depth, entries[i-1].Depth, "depth grows going back")
	}
}

func TestPredecessors(t *testing.T) {
	c := NewChain(chain())
	s3, _ := c.Service("s3")

	preds := c.Predecessors(s3)
	require.Len(t, preds, 3)
	assert.Equal(t, "s2", preds[0].ID)
	assert.Equal(t, "s1", preds[1].ID)
	assert.True(t, preds[2].IsGenesis())

	s1, _ := c.Service("s1")
	only := c.Predecessors(s1)
	require.Len(t, only, 1, "never empty")
	assert.True(t, only[0].IsGenesis())
}

func TestHistory_FanIn(t *testing.T) {
	c := NewChain([]model.Service{
		{ID: "a", PartID: 7, Time: day(1), UsageID: "ua", Successor: ref("c")},
		{ID: "b", PartID: 7, Time: day(2), UsageID: "ub", Successor: ref("c")},
		{ID: "c", PartID: 7, Time: day(3), UsageID: "uc"},
	})
	sc, _ := c.Service("c")

	entries := c.History(0, sc)
	require.Len(t, entries, 4)
	assert.Equal(t, "a", entries[0].Service.ID)
	assert.Equal(t, 1, entries[0].Depth, "earlier sibling is deeper")
	assert.True(t, entries[1].Service.IsGenesis())
	assert.Equal(t, "b", entries[2].Service.ID)
	assert.Equal(t, 0, entries[2].Depth)
}

func TestHistory_Cycle(t *testing.T) {
	c := NewChain([]model.Service{
		{ID: "x", PartID: 7, Time: day(1), UsageID: "ux", Successor: ref("y")},
		{ID: "y", PartID: 7, Time: day(2), UsageID: "uy", Successor: ref("x")},
	})
	sy, _ := c.Service("y")

	entries := c.History(0, sy)
	require.Len(t, entries, 2)
	assert.Equal(t, "x", entries[0].Service.ID)
	assert.True(t, entries[1].Service.IsGenesis())

	_, open := c.Open(7)
	assert.False(t, open)
}

func TestSuccessor_Dangling(t *testing.T) {
	c := NewChain([]model.Service{
		{ID: "s1", PartID: 7, Time: day(1), UsageID: "u1", Successor: ref("gone")},
		{ID: "s2", PartID: 8, Time: day(2), UsageID: "u2", Successor: ref("s3")},
		{ID: "s3", PartID: 9, Time: day(3), UsageID: "u3"},
	})

	s1, _ := c.Service("s1")
	_, ok := c.Successor(s1)
	assert.False(t, ok)

	open, ok := c.Open(7)
	require.True(t, ok, "a dangling successor leaves the chain open")
	assert.Equal(t, "s1", open.ID)

	s2, _ := c.Service("s2")
	_, ok = c.Successor(s2)
	assert.False(t, ok, "links across parts are ignored")
	s3, _ := c.Service("s3")
	assert.Len(t, c.Predecessors(s3), 1)
}

func TestCurrentWindow(t *testing.T) {
	part := model.Part{ID: 7, Purchase: day(0), UsageID: "pu"}

	w := NewChain(chain()).CurrentWindow(part)
	assert.Equal(t, "s3", w.Since.ID)
	assert.Equal(t, day(30), w.Start)
	assert.Equal(t, "u3", w.UsageStart)
	assert.Equal(t, "pu", w.UsageEnd)

	w = NewChain(nil).CurrentWindow(part)
	assert.True(t, w.Since.IsGenesis())
	assert.Equal(t, day(0), w.Start)
	assert.Empty(t, w.UsageStart)
}

func TestRows(t *testing.T) {
	part := model.Part{ID: 7, Purchase: day(0), UsageID: "pu"}
	ledgers := ledgerMap{
		"u1": {ID: "u1", Distance: 1000, Count: 1},
		"u2": {ID: "u2", Distance: 3000, Count: 3},
		"u3": {ID: "u3", Distance: 6000, Count: 6},
		"pu": {ID: "pu", Distance: 10000, Count: 10},
	}
	now := day(45)

	rows := NewChain(chain()).Rows(part, ledgers, now)
	require.Len(t, rows, 4)

	assert.Equal(t, "s3", rows[0].Service.ID)
	assert.Equal(t, 0, rows[0].Depth)
	assert.Equal(t, int64(15), rows[0].Days)
	assert.Equal(t, int64(4000), rows[0].Usage.Distance)

	assert.Equal(t, "s2", rows[1].Service.ID)
	assert.Equal(t, int64(10), rows[1].Days)
	assert.Equal(t, int64(3000), rows[1].Usage.Distance)

	assert.Equal(t, "s1", rows[2].Service.ID)
	assert.Equal(t, int64(2000), rows[2].Usage.Distance)

	genesis := rows[3]
	assert.True(t, genesis.Service.IsGenesis())
	assert.Equal(t, day(0), genesis.Service.Time)
	assert.Equal(t, int64(10), genesis.Days)
	assert.Equal(t, int64(1000), genesis.Usage.Distance)
}

func TestRows_NoServices(t *testing.T) {
	part := model.Part{ID: 7, Purchase: day(0), UsageID: "pu"}
	ledgers := ledgerMap{"pu": {ID: "pu", Distance: 500}}

	rows := NewChain(nil).Rows(part, ledgers, day(3))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Service.IsGenesis())
	assert.Equal(t, int64(3), rows[0].Days)
	assert.Equal(t, int64(500), rows[0].Usage.Distance)
}
