package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilcar/leads-console/internal/lead"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func at(day int) lead.Time {
	return lead.Time{Time: time.Date(2024, 5, day, 9, 0, 0, 0, time.UTC)}
}

func seedLeads(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	rows := []lead.Lead{
		{Name: "Ana", Vehicle: "Civic", Status: 1, Temperature: 3, Portal: 1, Subject: 2, SendDate: at(3)},
		{Name: "Bruno", Vehicle: "Onix", Status: 7, Temperature: 1, Portal: 2, Subject: 6, SendDate: at(5)},
		{Name: "Carla", Status: 7, Temperature: 4, Portal: 1, Subject: 6, SendDate: at(1), Message: "Quero um civic"},
		{Name: "Diego", Vehicle: "Hilux", Status: 5, Temperature: 2, Portal: 14, Subject: 10, SendDate: at(4)},
	}
	for _, l := range rows {
		_, err := s.SaveLead(ctx, l)
		require.NoError(t, err)
	}
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dev.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	assert.NoError(t, s.Ping(context.Background()))
	assert.FileExists(t, path)
}

func TestListLeadsSortsBySendDateDesc(t *testing.T) {
	s := newTestStore(t)
	seedLeads(t, s)

	page, err := s.ListLeads(context.Background(), lead.Query{Sort: lead.DefaultSort, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Content, 4)

	names := []string{}
	for _, l := range page.Content {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"Bruno", "Diego", "Ana", "Carla"}, names)
	assert.Equal(t, int64(4), page.Page.TotalElements)
	assert.Equal(t, 1, page.Page.TotalPages)
}

func TestListLeadsFiltersAndPaginates(t *testing.T) {
	s := newTestStore(t)
	seedLeads(t, s)
	ctx := context.Background()

	page, err := s.ListLeads(ctx, lead.Query{Filters: lead.Filters{Status: 7}, Sort: lead.DefaultSort, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	for _, l := range page.Content {
		assert.Equal(t, 7, l.Status)
	}

	page, err = s.ListLeads(ctx, lead.Query{Filters: lead.Filters{SearchText: "CIVIC"}, Sort: lead.Sort{Field: "name", Direction: lead.Asc}, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "Ana", page.Content[0].Name)
	assert.Equal(t, "Carla", page.Content[1].Name)

	page, err = s.ListLeads(ctx, lead.Query{Sort: lead.Sort{Field: "name", Direction: lead.Asc}, Page: 1, Size: 3})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "Diego", page.Content[0].Name)
	assert.Equal(t, 2, page.Page.TotalPages)

	page, err = s.ListLeads(ctx, lead.Query{Sort: lead.DefaultSort, Page: 5, Size: 3})
	require.NoError(t, err)
	assert.NotNil(t, page.Content)
	assert.Empty(t, page.Content)
}

func TestListLeadsPageBeyondOffsetRange(t *testing.T) {
	s := newTestStore(t)
	seedLeads(t, s)

	page, err := s.ListLeads(context.Background(), lead.Query{Sort: lead.DefaultSort, Page: math.MaxInt64 / 5, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
	assert.Equal(t, int64(4), page.Page.TotalElements)
}

func TestListLeadsSearchMatchesWildcardsLiterally(t *testing.T) {
	s := newTestStore(t)
	seedLeads(t, s)
	ctx := context.Background()
	_, err := s.SaveLead(ctx, lead.Lead{Name: "Eva", Message: "Desconto de 10% no_carro", Status: 1, SendDate: at(2)})
	require.NoError(t, err)

	for _, text := range []string{"%", "_", "10%", "no_c"} {
		page, err := s.ListLeads(ctx, lead.Query{Filters: lead.Filters{SearchText: text}, Sort: lead.DefaultSort, Size: 10})
		require.NoError(t, err)
		require.Len(t, page.Content, 1, "search %q", text)
		assert.Equal(t, "Eva", page.Content[0].Name)
	}

	page, err := s.ListLeads(ctx, lead.Query{Filters: lead.Filters{SearchText: `\`}, Sort: lead.DefaultSort, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}

func TestListLeadsRejectsUnknownSort(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ListLeads(context.Background(), lead.Query{Sort: lead.Sort{Field: "name; DROP TABLE leads"}, Size: 10})
	assert.Error(t, err)
}

func TestLeadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bday, err := lead.ParseTime("1990-03-04")
	require.NoError(t, err)

	id, err := s.SaveLead(ctx, lead.Lead{Name: "Eva", Email: "eva@x.com", CPF: "123", Birthday: bday, Status: 1, LicensePlate: "ABC1D23"})
	require.NoError(t, err)

	got, err := s.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "eva@x.com", got.Email)
	assert.Equal(t, "1990-03-04", got.Birthday.Format(lead.DateLayout))
	assert.True(t, got.SendDate.IsZero())
	assert.Equal(t, "ABC1D23", got.LicensePlate)

	_, err = s.GetLead(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.SaveLead(ctx, lead.Lead{ID: id, Name: "dup"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestKeyValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetValue(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetValue(ctx, "token", "a"))
	require.NoError(t, s.SetValue(ctx, "token", "b"))
	v, err := s.GetValue(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	require.NoError(t, s.DeleteValue(ctx, "token"))
	require.NoError(t, s.DeleteValue(ctx, "token"))
	_, err = s.GetValue(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTruncateKeepsSessionByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLeads(t, s)
	require.NoError(t, s.SetValue(ctx, "token", "x"))

	require.NoError(t, s.Truncate(ctx, false))
	n, err := s.CountLeads(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.GetValue(ctx, "token")
	assert.NoError(t, err)

	require.NoError(t, s.Truncate(ctx, true))
	_, err = s.GetValue(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)
}
