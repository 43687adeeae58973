package migrations

import _ "embed"

//go:embed 20250901000003_create_shop_items.sql
var createShopItemsSQL string

func init() {
	Migrations.MustRegister(
		exec(createShopItemsSQL),
		exec(`DROP TABLE IF EXISTS shop_items`),
	)
}
