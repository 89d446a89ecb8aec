package models

// Service is a catalog entry. Payout is the worker's share and never exceeds Price.
type Service struct {
	ID     int64  `db:"id" json:"id" yaml:"-"`
	Name   string `db:"service_name" json:"name" yaml:"name" validate:"required,min=2,max=64"`
	Price  int64  `db:"price" json:"price" yaml:"price" validate:"gte=0"`
	Payout int64  `db:"payout_worker" json:"payout" yaml:"payout" validate:"gte=0,ltefield=Price"`
}
