package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

const jobProcessViewSelect = `
	SELECT jp.id, jp.job_id, jp.provider_id, jp.customer_id, jp.services, jp.service_price, jp.status,
		jp.rating, jp.comment, jp.created_at, jp.updated_at,
		j.status AS job_status, j.platform, j.car_model, j.location_lng, j.location_lat,
		j.destination_lng, j.destination_lat,
		p.name AS provider_name, p.role AS provider_role, p.location_lng AS provider_lng,
		p.location_lat AS provider_lat, p.certifications AS provider_certifications,
		c.name AS customer_name
	FROM job_processes jp
	JOIN jobs j ON j.id = jp.job_id
	JOIN users p ON p.id = jp.provider_id
	JOIN users c ON c.id = jp.customer_id
`

// Колонки, по которым разрешена сортировка списка.
var jobProcessSortColumns = map[string]string{
	"updated_at":    "jp.updated_at",
	"created_at":    "jp.created_at",
	"status":        "jp.status",
	"service_price": "jp.service_price",
}

// OwnerScope ограничивает выборку процессами одной стороны. Пустой Column означает все процессы.
type OwnerScope struct {
	Column string
	ID     uuid.UUID
}

// JobProcessFilter параметры списка процессов.
type JobProcessFilter struct {
	Owner     OwnerScope
	Statuses  []string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// JobProcessRepository чтение и точечные обновления процессов вне транзакций Store.
type JobProcessRepository struct {
	db *sqlx.DB
}

// NewJobProcessRepository создаёт экземпляр репозитория.
func NewJobProcessRepository(db *sqlx.DB) *JobProcessRepository {
	return &JobProcessRepository{db: db}
}

// GetView возвращает процесс стороны вместе с заявкой и участниками.
func (r *JobProcessRepository) GetView(ctx context.Context, id uuid.UUID, owner OwnerScope) (*models.JobProcessView, error) {
	where, args, err := ownerCondition(owner, []interface{}{id}, "jp.id = $1")
	if err != nil {
		return nil, err
	}

	var view models.JobProcessView
	if err := r.db.GetContext(ctx, &view, jobProcessViewSelect+" WHERE "+where, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("job process repository: get view %w", err)
	}
	return &view, nil
}

// List возвращает страницу процессов и общее количество по фильтру.
func (r *JobProcessRepository) List(ctx context.Context, filter JobProcessFilter) ([]models.JobProcessView, int, error) {
	where, args, err := ownerCondition(filter.Owner, nil, "TRUE")
	if err != nil {
		return nil, 0, err
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(filter.Statuses))
		where += fmt.Sprintf(" AND jp.status = ANY($%d)", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM job_processes jp WHERE ` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("job process repository: count %w", err)
	}

	query := jobProcessViewSelect + " WHERE " + where + " ORDER BY " + orderClause(filter.SortBy, filter.SortOrder)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	views := []models.JobProcessView{}
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, 0, fmt.Errorf("job process repository: list %w", err)
	}
	return views, total, nil
}

// FindExpired возвращает идентификаторы процессов в статусе status, не менявшихся с before.
func (r *JobProcessRepository) FindExpired(ctx context.Context, owner OwnerScope, status string, before time.Time) ([]uuid.UUID, error) {
	where, args, err := ownerCondition(owner, []interface{}{status, before}, "status = $1 AND updated_at < $2")
	if err != nil {
		return nil, err
	}
	where = strings.ReplaceAll(where, "jp.", "")

	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM job_processes WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("job process repository: find expired %w", err)
	}
	return ids, nil
}

// ForceStatus переводит процесс из from в to, если он всё ещё в from и не менялся с before.
// Возвращает false, когда процесс успел сменить статус.
func (r *JobProcessRepository) ForceStatus(ctx context.Context, id uuid.UUID, from, to string, before time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE job_processes SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND updated_at < $4
	`, id, from, to, before)
	if err != nil {
		return false, fmt.Errorf("job process repository: force status %w", err)
	}

	rows, err := common.Affected(result, "job process repository: force status")
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetFeedback сохраняет отзыв клиента, если процесс его и завершён.
func (r *JobProcessRepository) SetFeedback(ctx context.Context, id, customerID uuid.UUID, statuses []string, rating int, comment *string) (*models.JobProcess, error) {
	var jp models.JobProcess
	query := fmt.Sprintf(`
		UPDATE job_processes SET rating = $4, comment = $5, updated_at = NOW()
		WHERE id = $1 AND customer_id = $2 AND status = ANY($3)
		RETURNING %s
	`, jobProcessColumns)
	if err := r.db.GetContext(ctx, &jp, query, id, customerID, pq.Array(statuses), rating, comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("job process repository: set feedback %w", err)
	}
	return &jp, nil
}

// ServiceNames возвращает названия справочника услуг по идентификаторам.
func (r *JobProcessRepository) ServiceNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		ID   uuid.UUID `db:"id"`
		Name string    `db:"name"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name FROM services WHERE id = ANY($1)`, pq.Array(uuidStrings(ids))); err != nil {
		return nil, fmt.Errorf("service repository: names %w", err)
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// ProviderReputation считает средний рейтинг (пустой рейтинг как 0) и число отзывов
// по завершённым процессам исполнителей.
func (r *JobProcessRepository) ProviderReputation(ctx context.Context, providerIDs []uuid.UUID, doneStatuses []string) (map[uuid.UUID]models.Reputation, error) {
	result := make(map[uuid.UUID]models.Reputation, len(providerIDs))
	if len(providerIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT provider_id,
			COALESCE(AVG(COALESCE(rating, 0)), 0)::float8 AS avg_rating,
			COUNT(comment) AS feedback_count
		FROM job_processes
		WHERE provider_id = ANY($1) AND status = ANY($2)
		GROUP BY provider_id
	`
	var rows []models.Reputation
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(uuidStrings(providerIDs)), pq.Array(doneStatuses)); err != nil {
		return nil, fmt.Errorf("job process repository: reputation %w", err)
	}
	for _, row := range rows {
		result[row.ProviderID] = row
	}
	return result, nil
}

// CounterpartIDs возвращает уникальных участников идущих процессов пользователя.
func (r *JobProcessRepository) CounterpartIDs(ctx context.Context, userID uuid.UUID, runningStatuses []string) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT CASE WHEN customer_id = $1 THEN provider_id ELSE customer_id END
		FROM job_processes
		WHERE (customer_id = $1 OR provider_id = $1) AND status = ANY($2)
	`
	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, query, userID, pq.Array(runningStatuses)); err != nil {
		return nil, fmt.Errorf("job process repository: counterparts %w", err)
	}
	return ids, nil
}

func ownerCondition(owner OwnerScope, args []interface{}, base string) (string, []interface{}, error) {
	switch owner.Column {
	case "":
		return base, args, nil
	case "customer_id", "provider_id":
		args = append(args, owner.ID)
		return fmt.Sprintf("%s AND jp.%s = $%d", base, owner.Column, len(args)), args, nil
	}
	return "", nil, common.ErrInvalidInput
}

func orderClause(sortBy, sortOrder string) string {
	column, ok := jobProcessSortColumns[sortBy]
	if !ok {
		column = jobProcessSortColumns["updated_at"]
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}
