package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"wedhub/internal/models"
)

// InquiryRepository reads booking inquiries and vendors. Both are owned by
// the marketplace side of the platform; billing only looks them up.
type InquiryRepository struct {
	DB *sql.DB
}

func NewInquiryRepository(db *sql.DB) *InquiryRepository {
	return &InquiryRepository{DB: db}
}

func (r *InquiryRepository) GetInquiry(ctx context.Context, id uuid.UUID) (*models.Inquiry, error) {
	const q = `
		SELECT id, vendor_id, user_id, status, event_date, message, created_at
		FROM inquiries
		WHERE id = $1
	`
	var (
		i         models.Inquiry
		eventDate sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&i.ID, &i.VendorID, &i.UserID, &i.Status, &eventDate, &i.Message, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inquiry get: %w", err)
	}
	i.EventDate = timePtr(eventDate)
	return &i, nil
}

func (r *InquiryRepository) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	const q = `
		SELECT id, owner_id, business_name, email, phone, telegram_chat_id, created_at
		FROM vendors
		WHERE id = $1
	`
	var v models.Vendor
	err := r.DB.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.OwnerID, &v.BusinessName, &v.Email, &v.Phone, &v.TelegramChat, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vendor get: %w", err)
	}
	return &v, nil
}
