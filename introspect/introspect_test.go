package introspect_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluelightning32/Dirmi/introspect"
)

type Calculator interface {
	Add(a, b int32) int32
	Divide(a, b int32) (int32, error)
	IsReady() bool
	Fire(msg string)
	LogChecked(msg string) error
}

func TestExamineClassifiesSyncAndAsync(t *testing.T) {
	ri, err := introspect.Reflect{}.Examine(reflect.TypeOf((*Calculator)(nil)).Elem())
	require.NoError(t, err)
	assert.Equal(t, 5, ri.Len())

	byName := make(map[string]bool)
	for _, m := range ri.Methods() {
		byName[m.Name] = m.Async
		switch m.Name {
		case "Add":
			assert.False(t, m.Async)
			require.NotNil(t, m.ReturnType)
			assert.Len(t, m.Params, 2)
		case "IsReady":
			assert.False(t, m.Async)
			require.NotNil(t, m.ReturnType)
		case "Fire":
			// Async is derived from a Go signature having zero return
			// values; Fire has none.
			assert.True(t, m.Async)
		case "LogChecked":
			// A method whose only return is error has one return value
			// (n==1), so it is sync, with no ReturnType (the error becomes
			// the sync failure channel, not a reply value).
			assert.False(t, m.Async)
			assert.Nil(t, m.ReturnType)
		case "Divide":
			assert.False(t, m.Async)
			require.NotNil(t, m.ReturnType)
		}
	}
	assert.Len(t, byName, 5)
}

func TestExamineRejectsNonInterface(t *testing.T) {
	_, err := introspect.Reflect{}.Examine(reflect.TypeOf(0))
	require.Error(t, err)
}

func TestExamineProducesPairwiseDistinctMethodIDs(t *testing.T) {
	ri, err := introspect.Reflect{}.Examine(reflect.TypeOf((*Calculator)(nil)).Elem())
	require.NoError(t, err)
	methods := ri.Methods()
	for i := range methods {
		for j := range methods {
			if i == j {
				continue
			}
			assert.False(t, methods[i].ID.Equals(methods[j].ID))
		}
	}
}
