package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortToggle(t *testing.T) {
	s := DefaultSort
	s = s.Toggle("sendDate")
	assert.Equal(t, Sort{Field: "sendDate", Direction: Asc}, s)
	s = s.Toggle("sendDate")
	assert.Equal(t, Sort{Field: "sendDate", Direction: Desc}, s)
	s = s.Toggle("name")
	assert.Equal(t, Sort{Field: "name", Direction: Asc}, s)
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("sendDate,desc")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort, s)

	s, err = ParseSort("name")
	require.NoError(t, err)
	assert.Equal(t, Asc, s.Direction)

	_, err = ParseSort("name,sideways")
	assert.Error(t, err)
}

func TestQueryValuesOmitsEmptyFilters(t *testing.T) {
	q := Query{Sort: DefaultSort, Page: 0, Size: 10}
	v := q.Values()
	assert.Equal(t, "0", v.Get("page"))
	assert.Equal(t, "10", v.Get("size"))
	assert.Equal(t, "sendDate,desc", v.Get("sort"))
	assert.False(t, v.Has("searchText"))
	assert.False(t, v.Has("status"))
}

func TestQueryValuesUsesSymbols(t *testing.T) {
	q := Query{
		Filters: Filters{SearchText: "  civic ", Status: 7, Temperature: 4},
		Sort:    Sort{Field: "name", Direction: Asc},
		Page:    2,
		Size:    10,
	}
	v := q.Values()
	assert.Equal(t, "civic", v.Get("searchText"))
	assert.Equal(t, "CLOSED", v.Get("status"))
	assert.Equal(t, "SUPER_LEAD", v.Get("temperature"))
	assert.Equal(t, "name,asc", v.Get("sort"))
	assert.Equal(t, "2", v.Get("page"))
}

func TestParseQueryInverse(t *testing.T) {
	q := Query{
		Filters: Filters{SearchText: "ana", Portal: 15, Subject: 10},
		Sort:    Sort{Field: "status", Direction: Desc},
		Page:    1,
		Size:    25,
	}
	back, err := ParseQuery(q.Values(), 10)
	require.NoError(t, err)
	assert.Equal(t, q, back)
}

func TestParseQueryAcceptsIntegers(t *testing.T) {
	back, err := ParseQuery(map[string][]string{"status": {"7"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, 7, back.Filters.Status)
	assert.Equal(t, 10, back.Size)
	assert.Equal(t, DefaultSort, back.Sort)

	_, err = ParseQuery(map[string][]string{"page": {"-1"}}, 10)
	assert.Error(t, err)
}

func TestParseQueryBoundsPaging(t *testing.T) {
	q, err := ParseQuery(map[string][]string{"size": {"100"}, "page": {"3"}}, 10)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, q.Size)
	assert.Equal(t, 3, q.Page)

	_, err = ParseQuery(map[string][]string{"size": {"101"}}, 10)
	assert.Error(t, err)
	_, err = ParseQuery(map[string][]string{"page": {"1844674407370955161"}}, 10)
	assert.Error(t, err)
	_, err = ParseQuery(map[string][]string{"page": {"900000000"}, "size": {"50"}}, 10)
	assert.Error(t, err)
}

func TestParseField(t *testing.T) {
	f, err := ParseField("search")
	require.NoError(t, err)
	assert.Equal(t, FieldSearch, f)
	assert.Nil(t, f.Axis())

	f, err = ParseField("STATUS")
	require.NoError(t, err)
	assert.Same(t, Status, f.Axis())

	_, err = ParseField("color")
	assert.Error(t, err)
}
