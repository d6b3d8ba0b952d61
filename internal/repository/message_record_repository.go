package repository

import (
    "database/sql"
    "encoding/json"
    "time"

    "github.com/bulkwave/bulkwave-backend/internal/model"
)

type MessageRecordRepositoryInterface interface {
    Create(m *model.MessageRecord) error
    ListByUser(userID string, offset, limit int) ([]*model.MessageRecord, int, error)
    ListByCampaign(campaignID string) ([]*model.MessageRecord, error)
    CampaignStats(campaignID string) (map[string]int, error)
}

// MessageRecordRepository stores the append-only send history. Records are
// never updated after insert.
type MessageRecordRepository struct {
    DB *sql.DB
}

const messageColumns = `id, user_id, campaign_id, recipient, content, device_id, status, last_error, created_at`

func (r *MessageRecordRepository) Create(m *model.MessageRecord) error {
    if m.CreatedAt.IsZero() {
        m.CreatedAt = time.Now()
    }
    recipient, err := json.Marshal(m.Recipient)
    if err != nil {
        return err
    }
    query := `
        INSERT INTO message_records (` + messageColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
    _, err = r.DB.Exec(query,
        m.ID, m.UserID, m.CampaignID, recipient, m.Content,
        m.DeviceID, m.Status, m.LastError, m.CreatedAt,
    )
    return err
}

func (r *MessageRecordRepository) ListByUser(userID string, offset, limit int) ([]*model.MessageRecord, int, error) {
    query := `SELECT ` + messageColumns + ` FROM message_records
              WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
    rows, err := r.DB.Query(query, userID, limit, offset)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    records, err := scanMessageRecords(rows)
    if err != nil {
        return nil, 0, err
    }

    var total int
    if err := r.DB.QueryRow(`SELECT COUNT(*) FROM message_records WHERE user_id=$1`, userID).Scan(&total); err != nil {
        return nil, 0, err
    }
    return records, total, nil
}

func (r *MessageRecordRepository) ListByCampaign(campaignID string) ([]*model.MessageRecord, error) {
    query := `SELECT ` + messageColumns + ` FROM message_records
              WHERE campaign_id=$1 ORDER BY created_at`
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanMessageRecords(rows)
}

func (r *MessageRecordRepository) CampaignStats(campaignID string) (map[string]int, error) {
    query := `SELECT status, COUNT(*) FROM message_records WHERE campaign_id=$1 GROUP BY status`
    rows, err := r.DB.Query(query, campaignID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    stats := map[string]int{"sent": 0, "failed": 0}
    for rows.Next() {
        var status string
        var count int
        if err := rows.Scan(&status, &count); err != nil {
            return nil, err
        }
        stats[status] = count
    }
    return stats, rows.Err()
}

func scanMessageRecords(rows *sql.Rows) ([]*model.MessageRecord, error) {
    records := []*model.MessageRecord{}
    for rows.Next() {
        var (
            m         model.MessageRecord
            recipient []byte
        )
        err := rows.Scan(
            &m.ID, &m.UserID, &m.CampaignID, &recipient, &m.Content,
            &m.DeviceID, &m.Status, &m.LastError, &m.CreatedAt,
        )
        if err != nil {
            return nil, err
        }
        if err := json.Unmarshal(recipient, &m.Recipient); err != nil {
            return nil, err
        }
        records = append(records, &m)
    }
    return records, rows.Err()
}

var _ MessageRecordRepositoryInterface = (*MessageRecordRepository)(nil)
