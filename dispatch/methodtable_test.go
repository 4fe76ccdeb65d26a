package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluelightning32/Dirmi/wire"
)

func noopInvoker(RemoteMethod) Invoker {
	return func(Connection, interface{}) error { return nil }
}

func TestMethodTableLookupAndCollision(t *testing.T) {
	// Two methods deliberately sharing a hash: same Hash(), different
	// disambiguator, so Equals differs and lookup must rescan the bucket.
	idA := wire.NewMethodID(0x1234, 1)
	idB := wire.NewMethodID(0x1234, 2)
	ri := NewRemoteInfo([]RemoteMethod{
		{Name: "MethodA", ID: idA},
		{Name: "MethodB", ID: idB},
	})

	table, err := NewMethodTable(ri, noopInvoker)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	entryA, err := table.Lookup(idA)
	require.NoError(t, err)
	assert.Equal(t, "MethodA", entryA.Method.Name)

	entryB, err := table.Lookup(idB)
	require.NoError(t, err)
	assert.Equal(t, "MethodB", entryB.Method.Name)

	_, err = table.Lookup(wire.NewMethodID(0x1234, 3))
	require.Error(t, err)
}

func TestMethodTableOrdinalStability(t *testing.T) {
	ri := NewRemoteInfo([]RemoteMethod{
		{Name: "Add", ID: wire.NewMethodID(1, 0)},
		{Name: "Sub", ID: wire.NewMethodID(2, 0)},
		{Name: "Mul", ID: wire.NewMethodID(3, 0)},
	})

	t1, err := NewMethodTable(ri, noopInvoker)
	require.NoError(t, err)
	t2, err := NewMethodTable(ri, noopInvoker)
	require.NoError(t, err)

	for _, m := range ri.Methods() {
		e1, err := t1.Lookup(m.ID)
		require.NoError(t, err)
		e2, err := t2.Lookup(m.ID)
		require.NoError(t, err)
		assert.Equal(t, e1.Ordinal, e2.Ordinal)
	}
}

func TestMethodTableRejectsDuplicateID(t *testing.T) {
	dup := wire.NewMethodID(9, 9)
	ri := NewRemoteInfo([]RemoteMethod{
		{Name: "A", ID: dup},
		{Name: "B", ID: dup},
	})
	_, err := NewMethodTable(ri, noopInvoker)
	require.Error(t, err)
}
