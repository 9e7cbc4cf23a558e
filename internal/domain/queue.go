package domain

type QueueStatus string

const (
	QueueStatusWaiting    QueueStatus = "WAITING"
	QueueStatusInProgress QueueStatus = "IN_PROGRESS"
	QueueStatusAlmostDone QueueStatus = "ALMOST_DONE"
	QueueStatusCompleted  QueueStatus = "COMPLETED"
	QueueStatusCancelled  QueueStatus = "CANCELLED"
)

type QueueTicket struct {
	EventID            string      `json:"eventId"`
	MyWaitingNumber    int64       `json:"myWaitingNumber"`
	TotalWaitingNumber int64       `json:"totalWaitingNumber"`
	Status             QueueStatus `json:"queueStatus"`
}

func (t *QueueTicket) IsTerminal() bool {
	return t.Status == QueueStatusCompleted || t.Status == QueueStatusCancelled
}

// CanProceed reports admission into the seat-selection window.
func (t *QueueTicket) CanProceed() bool {
	return t.Status == QueueStatusCompleted
}
