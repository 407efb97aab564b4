package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	var zero Filter[string]
	assert.True(t, zero.IsAll())
	assert.True(t, zero.Includes("anything"))
	assert.Equal(t, -1, zero.Len())
	assert.Nil(t, SortedStrings(zero))

	empty := Subset[string]()
	assert.False(t, empty.IsAll())
	assert.False(t, empty.Includes("anything"))
	assert.Equal(t, 0, empty.Len())

	some := Subset("b", "a", "b")
	assert.True(t, some.Includes("a"))
	assert.False(t, some.Includes("c"))
	assert.Equal(t, []string{"a", "b"}, SortedStrings(some))
}

func TestCoverageJSON(t *testing.T) {
	row := struct {
		Finite    Coverage `json:"finite"`
		Unbounded Coverage `json:"unbounded"`
	}{Finite: Finite(1.5), Unbounded: Unbounded()}

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.JSONEq(t, `{"finite":1.5,"unbounded":"unbounded"}`, string(data))

	var c Coverage
	require.NoError(t, json.Unmarshal([]byte(`"unbounded"`), &c))
	assert.True(t, c.IsUnbounded())
	require.NoError(t, json.Unmarshal([]byte(`2`), &c))
	assert.Equal(t, Finite(2), c)
	assert.Error(t, json.Unmarshal([]byte(`"forever"`), &c))
}

func TestCoverageAtMost(t *testing.T) {
	assert.True(t, Finite(3).AtMost(3))
	assert.False(t, Finite(3.1).AtMost(3))
	assert.False(t, Unbounded().AtMost(1e308))
	assert.Equal(t, "unbounded", Unbounded().String())
}

func TestFilterJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		All    Filter[string] `json:"all"`
		Empty  Filter[string] `json:"empty"`
		Subset Filter[string] `json:"subset"`
	}{All: All[string](), Empty: Subset[string](), Subset: Subset("b", "a")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"all":null,"empty":[],"subset":["a","b"]}`, string(data))

	var decoded Filter[string]
	require.NoError(t, json.Unmarshal([]byte(`["x"]`), &decoded))
	assert.True(t, decoded.Includes("x"))
	assert.False(t, decoded.Includes("y"))

	require.NoError(t, json.Unmarshal([]byte(`null`), &decoded))
	assert.True(t, decoded.IsAll())
}
