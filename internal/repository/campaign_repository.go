package repository

import (
    "database/sql"
    "encoding/json"
    "time"

    "github.com/sirupsen/logrus"

    appErrors "github.com/bulkwave/bulkwave-backend/internal/errors"
    "github.com/bulkwave/bulkwave-backend/internal/model"
)

type CampaignRepositoryInterface interface {
    Create(c *model.Campaign) error
    Update(c *model.Campaign) error
    UpdateStatus(campaignID, status string) error
    GetByID(id string) (*model.Campaign, error)
    ListByUser(userID string, offset, limit int) ([]*model.Campaign, int, error)
    ListAll() ([]*model.Campaign, error)
}

type CampaignRepository struct {
    DB *sql.DB
}

const campaignColumns = `id, user_id, name, template, recipients, attachment, config, status,
        total, sent, failed, next_index, rotation_state, created_at, updated_at, last_processed_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(c *model.Campaign) error {
    if c.CreatedAt.IsZero() {
        c.CreatedAt = time.Now()
    }
    recipients, attachment, cfg, rotation, err := marshalCampaignBlobs(c)
    if err != nil {
        return err
    }
    query := `
        INSERT INTO campaigns (` + campaignColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `
    _, err = r.DB.Exec(query,
        c.ID, c.UserID, c.Name, c.Template, recipients, attachment, cfg, c.Status,
        c.Total, c.Sent, c.Failed, c.NextIndex, rotation, c.CreatedAt, c.UpdatedAt, c.LastProcessedAt,
    )
    return err
}

// Update rewrites the full row. Called after every campaign mutation so the
// stored state never trails memory by more than one recipient.
func (r *CampaignRepository) Update(c *model.Campaign) error {
    recipients, attachment, cfg, rotation, err := marshalCampaignBlobs(c)
    if err != nil {
        return err
    }
    query := `
        UPDATE campaigns
        SET name=$1, template=$2, recipients=$3, attachment=$4, config=$5, status=$6,
            total=$7, sent=$8, failed=$9, next_index=$10, rotation_state=$11,
            updated_at=$12, last_processed_at=$13
        WHERE id=$14
    `
    _, err = r.DB.Exec(query,
        c.Name, c.Template, recipients, attachment, cfg, c.Status,
        c.Total, c.Sent, c.Failed, c.NextIndex, rotation,
        c.UpdatedAt, c.LastProcessedAt, c.ID,
    )
    return err
}

func (r *CampaignRepository) UpdateStatus(campaignID, status string) error {
    query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
    _, err := r.DB.Exec(query, status, time.Now(), campaignID)
    return err
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
    query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
    c, err := scanCampaign(r.DB.QueryRow(query, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewCampaignNotFound(id)
        }
        return nil, err
    }
    return c, nil
}

func (r *CampaignRepository) ListByUser(userID string, offset, limit int) ([]*model.Campaign, int, error) {
    query := `SELECT ` + campaignColumns + ` FROM campaigns
              WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
    rows, err := r.DB.Query(query, userID, limit, offset)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    campaigns := []*model.Campaign{}
    for rows.Next() {
        c, err := scanCampaign(rows)
        if err != nil {
            return nil, 0, err
        }
        campaigns = append(campaigns, c)
    }

    var total int
    if err := r.DB.QueryRow(`SELECT COUNT(*) FROM campaigns WHERE user_id=$1`, userID).Scan(&total); err != nil {
        return nil, 0, err
    }
    return campaigns, total, nil
}

// ListAll loads every stored campaign for boot-time reconciliation. Rows
// that fail to decode are logged and skipped rather than blocking startup.
func (r *CampaignRepository) ListAll() ([]*model.Campaign, error) {
    query := `SELECT ` + campaignColumns + ` FROM campaigns ORDER BY created_at`
    rows, err := r.DB.Query(query)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    campaigns := []*model.Campaign{}
    for rows.Next() {
        c, err := scanCampaign(rows)
        if err != nil {
            logrus.Warnf("skipping unreadable campaign row: %v", err)
            continue
        }
        campaigns = append(campaigns, c)
    }
    return campaigns, rows.Err()
}

// ====================== helpers ======================

type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
    var (
        c          model.Campaign
        recipients []byte
        attachment []byte
        cfg        []byte
        rotation   []byte
    )
    err := row.Scan(
        &c.ID, &c.UserID, &c.Name, &c.Template, &recipients, &attachment, &cfg, &c.Status,
        &c.Total, &c.Sent, &c.Failed, &c.NextIndex, &rotation, &c.CreatedAt, &c.UpdatedAt, &c.LastProcessedAt,
    )
    if err != nil {
        return nil, err
    }
    if err := json.Unmarshal(recipients, &c.Recipients); err != nil {
        return nil, err
    }
    if len(attachment) > 0 {
        if err := json.Unmarshal(attachment, &c.Attachment); err != nil {
            return nil, err
        }
    }
    if err := json.Unmarshal(cfg, &c.Config); err != nil {
        return nil, err
    }
    if err := json.Unmarshal(rotation, &c.Rotation); err != nil {
        return nil, err
    }
    return &c, nil
}

func marshalCampaignBlobs(c *model.Campaign) (recipients, attachment, cfg, rotation []byte, err error) {
    if recipients, err = json.Marshal(c.Recipients); err != nil {
        return
    }
    if c.Attachment != nil {
        if attachment, err = json.Marshal(c.Attachment); err != nil {
            return
        }
    }
    if cfg, err = json.Marshal(c.Config); err != nil {
        return
    }
    rotation, err = json.Marshal(c.Rotation)
    return
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
