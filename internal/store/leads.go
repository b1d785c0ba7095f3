package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nilcar/leads-console/internal/lead"
)

// sortColumns maps API sort fields onto columns. Anything else is rejected.
var sortColumns = map[string]string{
	"id":          "id",
	"name":        "name COLLATE NOCASE",
	"vehicle":     "vehicle COLLATE NOCASE",
	"sendDate":    "send_date",
	"temperature": "temperature",
	"status":      "status",
	"portal":      "portal",
	"subject":     "subject",
}

const leadColumns = `id, name, email, phone, cpf, birthday, send_date, message,
	subject, status, temperature, portal, vehicle, license_plate`

// SaveLead inserts l and returns its new id. A non-zero l.ID is kept.
func (s *Store) SaveLead(ctx context.Context, l lead.Lead) (int64, error) {
	var sendDate interface{}
	if !l.SendDate.IsZero() {
		sendDate = l.SendDate.Unix()
	}
	var id interface{}
	if l.ID != 0 {
		id = l.ID
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO leads (
		id, name, email, phone, cpf, birthday, send_date, message,
		subject, status, temperature, portal, vehicle, license_plate, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, l.Name, nullString(l.Email), nullString(l.Phone), nullString(l.CPF),
		nullString(l.Birthday.Format(lead.DateLayout)), sendDate, nullString(l.Message),
		l.Subject, l.Status, l.Temperature, l.Portal,
		nullString(l.Vehicle), nullString(l.LicensePlate), time.Now().Unix(),
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("lead %d: %w", l.ID, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save lead: %w", err)
	}
	return res.LastInsertId()
}

// GetLead returns one lead by id.
func (s *Store) GetLead(ctx context.Context, id int64) (*lead.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead: %w", err)
	}
	defer rows.Close()
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, ErrNotFound
	}
	return &leads[0], nil
}

// likeEscaper makes search text match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListLeads runs q and returns one page with its pagination metadata.
func (s *Store) ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error) {
	if q.Size <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	if q.Page < 0 {
		return nil, fmt.Errorf("page must not be negative")
	}
	sortField := q.Sort.Field
	if sortField == "" {
		sortField = lead.DefaultSort.Field
	}
	column, ok := sortColumns[sortField]
	if !ok {
		return nil, fmt.Errorf("unsupported sort field %q", sortField)
	}
	dir := "ASC"
	if q.Sort.Direction == lead.Desc {
		dir = "DESC"
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	if text := strings.TrimSpace(q.Filters.SearchText); text != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
		where += ` AND (lower(name) LIKE ? ESCAPE '\' OR lower(ifnull(email,'')) LIKE ? ESCAPE '\'
			OR ifnull(phone,'') LIKE ? ESCAPE '\' OR lower(ifnull(vehicle,'')) LIKE ? ESCAPE '\'
			OR lower(ifnull(license_plate,'')) LIKE ? ESCAPE '\' OR lower(ifnull(message,'')) LIKE ? ESCAPE '\')`
		args = append(args, like, like, like, like, like, like)
	}
	for _, f := range []struct {
		column string
		code   int
	}{
		{"status", q.Filters.Status},
		{"temperature", q.Filters.Temperature},
		{"portal", q.Filters.Portal},
		{"subject", q.Filters.Subject},
	} {
		if f.code != 0 {
			where += " AND " + f.column + " = ?"
			args = append(args, f.code)
		}
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	content := []lead.Lead{}
	// A page whose offset overflows lies past any stored row.
	if int64(q.Page) <= (math.MaxInt64-int64(q.Size))/int64(q.Size) {
		query := `SELECT ` + leadColumns + ` FROM leads` + where +
			fmt.Sprintf(" ORDER BY %s %s, id %s LIMIT %d OFFSET %d", column, dir, dir, q.Size, int64(q.Page)*int64(q.Size))
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query leads: %w", err)
		}
		defer rows.Close()

		found, err := scanLeads(rows)
		if err != nil {
			return nil, err
		}
		if found != nil {
			content = found
		}
	}
	return &lead.Page{
		Content: content,
		Page: &lead.PageInfo{
			Size:          q.Size,
			Number:        q.Page,
			TotalElements: total,
			TotalPages:    int((total + int64(q.Size) - 1) / int64(q.Size)),
		},
	}, nil
}

// CountLeads returns the number of stored leads.
func (s *Store) CountLeads(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return n, nil
}

func scanLeads(rows *sql.Rows) ([]lead.Lead, error) {
	var out []lead.Lead
	for rows.Next() {
		var l lead.Lead
		var email, phone, cpf, birthday, message, vehicle, plate sql.NullString
		var sendDate sql.NullInt64
		err := rows.Scan(&l.ID, &l.Name, &email, &phone, &cpf, &birthday, &sendDate, &message,
			&l.Subject, &l.Status, &l.Temperature, &l.Portal, &vehicle, &plate)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		l.Email, l.Phone, l.CPF = email.String, phone.String, cpf.String
		l.Message, l.Vehicle, l.LicensePlate = message.String, vehicle.String, plate.String
		if sendDate.Valid {
			l.SendDate = lead.Time{Time: time.Unix(sendDate.Int64, 0).UTC()}
		}
		if birthday.Valid {
			if t, err := lead.ParseTime(birthday.String); err == nil {
				l.Birthday = t
			}
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return out, nil
}
