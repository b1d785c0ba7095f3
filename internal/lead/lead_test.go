package lead

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxisRoundTrip(t *testing.T) {
	for _, axis := range Axes() {
		for _, e := range axis.Entries() {
			sym, ok := axis.Symbol(e.Code)
			require.True(t, ok, "%s %d", axis.Name(), e.Code)

			code, ok := axis.CodeOf(sym)
			require.True(t, ok)
			assert.Equal(t, e.Code, code, "%s symbol %s", axis.Name(), sym)

			parsed, err := axis.Parse(axis.Label(e.Code))
			require.NoError(t, err)
			assert.Equal(t, e.Code, parsed, "%s label %s", axis.Name(), e.Label)

			parsed, err = axis.Parse(strconv.Itoa(e.Code))
			require.NoError(t, err)
			assert.Equal(t, e.Code, parsed)
		}
	}
}

func TestAxisUnknownCode(t *testing.T) {
	assert.Equal(t, UnknownLabel, Status.Label(2))
	assert.Equal(t, UnknownLabel, Portal.Label(0))
	assert.Equal(t, UnknownLabel, Subject.Label(99))

	_, ok := Temperature.Symbol(9)
	assert.False(t, ok)

	_, err := Status.Parse("3")
	assert.Error(t, err)
	_, err = Status.Parse("NOPE")
	assert.Error(t, err)
}

func TestAxisSizes(t *testing.T) {
	assert.Len(t, Status.Entries(), 3)
	assert.Len(t, Temperature.Entries(), 4)
	assert.Len(t, Portal.Entries(), 28)
	assert.Len(t, Subject.Entries(), 17)
	assert.Equal(t, "Encerrado", Status.Label(7))
	assert.Equal(t, "Napista", Portal.Label(28))
}

func TestParseCaseInsensitive(t *testing.T) {
	code, err := Status.Parse("encerrado")
	require.NoError(t, err)
	assert.Equal(t, 7, code)

	code, err = Temperature.Parse("super_lead")
	require.NoError(t, err)
	assert.Equal(t, 4, code)
}

func TestLeadDecodesBothCodeForms(t *testing.T) {
	raw := `[
		{"id":1,"name":"Ana","status":7,"temperature":"HOT","portal":"OLX","subject":2,"sendDate":"2024-05-01 10:00:00"},
		{"id":2,"name":"Bruno","status":"CLOSED","temperature":3,"portal":1,"subject":"VENDER_VEICULO","email":null,"birthday":"1990-03-04"}
	]`
	var leads []Lead
	require.NoError(t, json.Unmarshal([]byte(raw), &leads))
	require.Len(t, leads, 2)

	for _, l := range leads {
		assert.Equal(t, 7, l.Status)
		assert.Equal(t, 3, l.Temperature)
		assert.Equal(t, 1, l.Portal)
		assert.Equal(t, 2, l.Subject)
	}
	assert.Equal(t, "2024-05-01 10:00:00", leads[0].SendDate.Format(DateTimeLayout))
	assert.True(t, leads[1].SendDate.IsZero())
	assert.Equal(t, "1990-03-04", leads[1].Birthday.Format(DateLayout))
	assert.Empty(t, leads[1].Email)
}

func TestLeadKeepsUnknownIntegerCode(t *testing.T) {
	var l Lead
	require.NoError(t, json.Unmarshal([]byte(`{"id":3,"name":"C","status":42}`), &l))
	assert.Equal(t, 42, l.Status)
	assert.Equal(t, UnknownLabel, Status.Label(l.Status))
}

func TestLeadRejectsMalformedCode(t *testing.T) {
	var l Lead
	assert.Error(t, json.Unmarshal([]byte(`{"id":3,"status":"BOGUS"}`), &l))
	assert.Error(t, json.Unmarshal([]byte(`{"id":3,"status":{"x":1}}`), &l))
	assert.Error(t, json.Unmarshal([]byte(`{"id":3,"sendDate":"yesterday"}`), &l))
}

func TestPageValidate(t *testing.T) {
	var p Page
	require.NoError(t, json.Unmarshal([]byte(`{"content":[],"page":{"size":10,"number":0,"totalElements":0,"totalPages":0}}`), &p))
	assert.NoError(t, p.Validate())

	var missing Page
	require.NoError(t, json.Unmarshal([]byte(`{"page":{"totalPages":1}}`), &missing))
	assert.Error(t, missing.Validate())

	var noMeta Page
	require.NoError(t, json.Unmarshal([]byte(`{"content":[]}`), &noMeta))
	assert.Error(t, noMeta.Validate())
	assert.Equal(t, 0, noMeta.TotalPages())
}
