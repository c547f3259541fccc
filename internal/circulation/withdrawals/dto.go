package withdrawals

import "time"

// POST /books/:bookId/withdrawals
type CreateWithdrawalRequest struct {
	Quantity int     `json:"quantity" binding:"required"`
	Reason   *string `json:"reason,omitempty"` // 紛失・破損など
}

type WithdrawalResponse struct {
	ID            string    `json:"id"`
	BookID        string    `json:"bookId"`
	Quantity      int       `json:"quantity"`
	Reason        *string   `json:"reason,omitempty"`
	ProcessedByID *string   `json:"processedById,omitempty"`
	WithdrawnAt   time.Time `json:"withdrawnAt"`
}

type ListResult struct {
	Items      []WithdrawalResponse `json:"items"`
	Total      int64                `json:"total"`
	NextOffset int                  `json:"nextOffset"`
}

type Page struct {
	Limit  int
	Offset int
}
