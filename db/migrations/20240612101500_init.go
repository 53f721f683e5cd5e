package migrations

import (
	"context"

	"github.com/falconpay/falcon/db/models"
	"github.com/uptrace/bun"
)

/* Since this init will reflect the latest model fields when run on a fresh db
make sure that when you add/remove columns in subsequent migrations
IfNotExists/IfExists is used, otherwise it's going to result in errors.
*/
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().Model((*models.Order)(nil)).Exec(ctx); err != nil {
			return err
		}
		// Deposit addresses are never reused while monitoring is active;
		// the unique index enforces it at the store.
		if _, err := db.NewCreateIndex().
			Model((*models.Order)(nil)).
			Index("orders_deposit_address_idx").
			Column("deposit_address").
			Unique().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateIndex().
			Model((*models.Order)(nil)).
			Index("orders_state_idx").
			Column("state").
			Exec(ctx); err != nil {
			return err
		}
		return nil
	}, nil)
}
