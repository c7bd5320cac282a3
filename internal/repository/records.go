package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/entity"
)

// RecordRepository persists the records linked to a document by a run.
// Nothing here deletes: records from superseded runs stay in place, and
// line items are read back for one run only.
type RecordRepository interface {
	CreateVendor(ctx context.Context, v *entity.PartyInfo) error
	CreateCustomer(ctx context.Context, c *entity.PartyInfo) error
	CreatePayment(ctx context.Context, p *entity.PaymentInfo) error
	CreateLineItems(ctx context.Context, documentID, runID uuid.UUID, items []entity.LineItem) error

	GetVendor(ctx context.Context, id uuid.UUID) (*entity.PartyInfo, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*entity.PartyInfo, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*entity.PaymentInfo, error)
	ListLineItems(ctx context.Context, documentID, runID uuid.UUID) ([]entity.LineItem, error)
}

type recordRepo struct {
	drv     *entsql.Driver
	dialect string
	log     *slog.Logger
}

func NewRecordRepository(db *DB, log *slog.Logger) RecordRepository {
	if log == nil {
		log = slog.Default()
	}
	return &recordRepo{drv: db.Driver(), dialect: db.Dialect(), log: log}
}

func (r *recordRepo) CreateVendor(ctx context.Context, v *entity.PartyInfo) error {
	return r.createParty(ctx, tableVendors, v)
}

func (r *recordRepo) CreateCustomer(ctx context.Context, c *entity.PartyInfo) error {
	return r.createParty(ctx, tableCustomers, c)
}

func (r *recordRepo) createParty(ctx context.Context, table string, p *entity.PartyInfo) error {
	stamp(&p.ID, &p.CreatedAt)
	q, args := entsql.Dialect(r.dialect).
		Insert(table).
		Columns("id", "name", "address", "contact_info", "created_at").
		Values(p.ID.String(), p.Name, p.Address, rawOrNil(p.ContactInfo), p.CreatedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("record create failed", "table", table, "err", err)
		return common.StoreError("create "+table, err)
	}
	return nil
}

func (r *recordRepo) CreatePayment(ctx context.Context, p *entity.PaymentInfo) error {
	stamp(&p.ID, &p.CreatedAt)
	q, args := entsql.Dialect(r.dialect).
		Insert(tablePayments).
		Columns("id", "terms", "date_required", "method", "additional_info", "created_at").
		Values(p.ID.String(), p.Terms, p.DateRequired, p.Method, rawOrNil(p.AdditionalInfo), p.CreatedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("record create failed", "table", tablePayments, "err", err)
		return common.StoreError("create payment information", err)
	}
	return nil
}

// CreateLineItems inserts all items in one statement so a run never leaves
// half an item table behind.
func (r *recordRepo) CreateLineItems(ctx context.Context, documentID, runID uuid.UUID, items []entity.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	ins := entsql.Dialect(r.dialect).
		Insert(tableLineItems).
		Columns("id", "document_id", "run_id", "position", "item_number", "quantity", "unit_measure", "description", "unit_cost", "amount")
	for i := range items {
		it := &items[i]
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		it.DocumentID = documentID
		it.Position = i
		ins.Values(it.ID.String(), documentID.String(), runID.String(), it.Position, it.ItemNumber, it.Quantity,
			it.UnitMeasure, it.Description, it.UnitCost, it.Amount)
	}
	q, args := ins.Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("line items create failed", "document_id", documentID, "count", len(items), "err", err)
		return common.StoreError("create line items", err)
	}
	r.log.Info("line items created", "document_id", documentID, "count", len(items))
	return nil
}

func (r *recordRepo) GetVendor(ctx context.Context, id uuid.UUID) (*entity.PartyInfo, error) {
	return r.getParty(ctx, tableVendors, id)
}

func (r *recordRepo) GetCustomer(ctx context.Context, id uuid.UUID) (*entity.PartyInfo, error) {
	return r.getParty(ctx, tableCustomers, id)
}

func (r *recordRepo) getParty(ctx context.Context, table string, id uuid.UUID) (*entity.PartyInfo, error) {
	q, args := entsql.Dialect(r.dialect).
		Select("id", "name", "address", "contact_info", "created_at").
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, common.StoreError("query "+table, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, common.StoreError("query "+table, err)
		}
		return nil, common.NotFound(fmt.Sprintf("%s %s not found", table, id))
	}
	var (
		p       entity.PartyInfo
		contact sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.Address, &contact, &p.CreatedAt); err != nil {
		return nil, common.StoreError("scan "+table, err)
	}
	if contact.Valid {
		p.ContactInfo = []byte(contact.String)
	}
	return &p, nil
}

func (r *recordRepo) GetPayment(ctx context.Context, id uuid.UUID) (*entity.PaymentInfo, error) {
	q, args := entsql.Dialect(r.dialect).
		Select("id", "terms", "date_required", "method", "additional_info", "created_at").
		From(entsql.Table(tablePayments)).
		Where(entsql.EQ("id", id.String())).
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, common.StoreError("query payment information", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, common.StoreError("query payment information", err)
		}
		return nil, common.NotFound(fmt.Sprintf("payment information %s not found", id))
	}
	var (
		p     entity.PaymentInfo
		extra sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Terms, &p.DateRequired, &p.Method, &extra, &p.CreatedAt); err != nil {
		return nil, common.StoreError("scan payment information", err)
	}
	if extra.Valid {
		p.AdditionalInfo = []byte(extra.String)
	}
	return &p, nil
}

func (r *recordRepo) ListLineItems(ctx context.Context, documentID, runID uuid.UUID) ([]entity.LineItem, error) {
	q, args := entsql.Dialect(r.dialect).
		Select("id", "document_id", "position", "item_number", "quantity", "unit_measure", "description", "unit_cost", "amount").
		From(entsql.Table(tableLineItems)).
		Where(entsql.And(entsql.EQ("document_id", documentID.String()), entsql.EQ("run_id", runID.String()))).
		OrderBy("position").
		Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		return nil, common.StoreError("query line items", err)
	}
	defer rows.Close()

	items := make([]entity.LineItem, 0)
	for rows.Next() {
		var it entity.LineItem
		if err := rows.Scan(&it.ID, &it.DocumentID, &it.Position, &it.ItemNumber, &it.Quantity,
			&it.UnitMeasure, &it.Description, &it.UnitCost, &it.Amount); err != nil {
			return nil, common.StoreError("scan line item", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StoreError("iterate line items", err)
	}
	return items, nil
}

func stamp(id *uuid.UUID, createdAt *time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
