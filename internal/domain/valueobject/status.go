package valueobject

import "github.com/ignatzorin/roadside-backend/internal/pkg/apperror"

// JobProcessStatus статус процесса выполнения заявки.
type JobProcessStatus string

const (
	StatusRequested       JobProcessStatus = "requested"
	StatusRequestCanceled JobProcessStatus = "request-canceled"
	StatusAccepted        JobProcessStatus = "accepted"
	StatusRejected        JobProcessStatus = "rejected"
	StatusConfirmed       JobProcessStatus = "confirmed"
	StatusDenied          JobProcessStatus = "denied"
	StatusServiced        JobProcessStatus = "serviced"
	StatusServiceRejected JobProcessStatus = "service-rejected"
	StatusPaid            JobProcessStatus = "paid"
	StatusCompleted       JobProcessStatus = "completed"
	StatusCanceled        JobProcessStatus = "canceled"
)

// StatusHistory псевдостатус фильтра списка: раскрывается в историю роли.
const StatusHistory = "history"

// AllStatuses перечисляет все статусы в порядке жизненного цикла.
var AllStatuses = []JobProcessStatus{
	StatusRequested, StatusRequestCanceled, StatusAccepted, StatusRejected, StatusConfirmed, StatusDenied,
	StatusServiced, StatusServiceRejected, StatusPaid, StatusCompleted, StatusCanceled,
}

// RunningStatuses статусы, при которых процесс ещё идёт.
var RunningStatuses = []JobProcessStatus{StatusRequested, StatusAccepted, StatusConfirmed, StatusServiced, StatusPaid}

// DoneStatuses статусы успешного завершения, после которых можно оставить отзыв.
var DoneStatuses = []JobProcessStatus{StatusCanceled, StatusCompleted}

func (s JobProcessStatus) IsValid() bool {
	switch s {
	case StatusRequested, StatusRequestCanceled, StatusAccepted, StatusRejected, StatusConfirmed, StatusDenied,
		StatusServiced, StatusServiceRejected, StatusPaid, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

func (s JobProcessStatus) String() string {
	return string(s)
}

// IsRunning сообщает, считается ли процесс активным.
func (s JobProcessStatus) IsRunning() bool {
	return containsStatus(RunningStatuses, s)
}

// IsDone сообщает, завершён ли процесс с итоговым результатом.
func (s JobProcessStatus) IsDone() bool {
	return containsStatus(DoneStatuses, s)
}

// AllowedPredecessors возвращает статусы, из которых можно перейти в s.
// Пустой результат означает, что в статус можно попасть только при создании.
func AllowedPredecessors(s JobProcessStatus) []JobProcessStatus {
	switch s {
	case StatusRequestCanceled, StatusAccepted, StatusDenied:
		return []JobProcessStatus{StatusRequested}
	case StatusConfirmed, StatusRejected:
		return []JobProcessStatus{StatusAccepted}
	case StatusServiced:
		return []JobProcessStatus{StatusConfirmed, StatusAccepted}
	case StatusPaid:
		return []JobProcessStatus{StatusConfirmed, StatusServiced}
	case StatusServiceRejected:
		return []JobProcessStatus{StatusServiced}
	case StatusCompleted, StatusCanceled:
		return []JobProcessStatus{StatusPaid}
	}
	return nil
}

// CanTransition проверяет пару (текущий, целевой) по таблице предшественников.
func CanTransition(from, to JobProcessStatus) bool {
	return containsStatus(AllowedPredecessors(to), from)
}

// JobStatusFor возвращает статус заявки, который выставляется при переходе процесса в s.
func JobStatusFor(s JobProcessStatus) (string, bool) {
	switch s {
	case StatusAccepted:
		return "process", true
	case StatusPaid:
		return "completed", true
	case StatusDenied:
		return "active", true
	}
	return "", false
}

func NewJobProcessStatus(status string) (JobProcessStatus, error) {
	s := JobProcessStatus(status)
	if !s.IsValid() {
		return "", apperror.ErrInvalidStatus
	}
	return s, nil
}

// Role сторона процесса с точки зрения вызывающего.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

func (r Role) IsValid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// OwnerColumn колонка, по которой процесс принадлежит роли.
func (r Role) OwnerColumn() string {
	if r == RoleCustomer {
		return "customer_id"
	}
	return "provider_id"
}

// Counterpart возвращает противоположную сторону.
func (r Role) Counterpart() Role {
	if r == RoleCustomer {
		return RoleProvider
	}
	return RoleCustomer
}

func NewRole(role string) (Role, error) {
	r := Role(role)
	if !r.IsValid() {
		return "", apperror.ErrInvalidRole
	}
	return r, nil
}

// AllowedTargets возвращает статусы, которые роль вправе выставлять.
func AllowedTargets(r Role) []JobProcessStatus {
	switch r {
	case RoleCustomer:
		return []JobProcessStatus{StatusAccepted, StatusRequestCanceled, StatusRejected, StatusServiceRejected, StatusPaid, StatusCompleted, StatusCanceled}
	case RoleProvider:
		return []JobProcessStatus{StatusRequested, StatusRequestCanceled, StatusConfirmed, StatusDenied, StatusServiced}
	}
	return nil
}

// CanSet проверяет право роли на целевой статус.
func (r Role) CanSet(s JobProcessStatus) bool {
	return containsStatus(AllowedTargets(r), s)
}

// HistoryStatuses статусы, которые роль видит во вкладке истории.
func HistoryStatuses(r Role) []JobProcessStatus {
	switch r {
	case RoleCustomer:
		return []JobProcessStatus{StatusRequestCanceled, StatusRejected, StatusDenied, StatusServiceRejected, StatusCanceled, StatusCompleted}
	case RoleProvider:
		return []JobProcessStatus{StatusRequestCanceled, StatusRejected, StatusDenied, StatusServiced, StatusServiceRejected, StatusPaid, StatusCanceled, StatusCompleted}
	}
	return nil
}

// StatusStrings переводит набор статусов в строки для запросов к БД.
func StatusStrings(statuses []JobProcessStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func containsStatus(set []JobProcessStatus, s JobProcessStatus) bool {
	for _, item := range set {
		if item == s {
			return true
		}
	}
	return false
}
